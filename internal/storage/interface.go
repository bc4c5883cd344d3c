package storage

import (
	"hokensim-backend/internal/model"
)

type Storage interface {
	// セッション管理
	CreateSession(session *model.Session) error
	GetSession(sessionID string) (*model.Session, error)
	UpdateSession(session *model.Session) error
	DeleteSession(sessionID string) error
	ListSessions() ([]*model.Session, error)

	// メッセージ管理
	AddMessage(sessionID string, message *model.Message) error
	GetMessages(sessionID string) ([]model.Message, error)
	UpdateMessageContent(sessionID, messageID, content string) error

	// ストレージ管理
	Init() error
	Close() error
	Backup() error
}
