package model

import "time"

// Message 会話の1ターン。ロールは生成後変更されない。
// ストリーミング中のアシスタントターンだけは空の内容で作られ、
// 受信に応じて内容が単調に伸びていく。
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Session struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	ScenarioID string    `json:"scenario_id,omitempty"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type SessionResponse struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	ScenarioID   string    `json:"scenario_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

type ChatResponse struct {
	Success   bool   `json:"success"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type FeedbackResponse struct {
	Success   bool   `json:"success"`
	Feedback  string `json:"feedback"`
	Timestamp string `json:"timestamp"`
}

// StreamChunk ペーシングエンジンが1文字進めるごとに発行する累積テキスト。
type StreamChunk struct {
	Content string `json:"content"`
	Role    string `json:"role,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
