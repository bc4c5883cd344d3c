package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hokensim-backend/internal/config"
	"hokensim-backend/internal/gemini"
	"hokensim-backend/internal/model"
	"hokensim-backend/internal/prompt"
	"hokensim-backend/internal/storage"
	"hokensim-backend/pkg/logger"

	"github.com/google/uuid"
)

type ChatService struct {
	storage    storage.Storage
	cfg        *config.Config
	httpClient *http.Client
}

func NewChatService(cfg *config.Config) *ChatService {
	var store storage.Storage

	if cfg.Storage.Type == "disk" {
		store = storage.NewDiskStorage(cfg.Storage.DataDir, cfg.Storage.CacheSize)
	} else {
		store = storage.NewMemoryStorage()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("ストレージの初期化に失敗、メモリストレージへフォールバック: %v", err)
		store = storage.NewMemoryStorage()
		store.Init()
	}

	cs := &ChatService{
		storage:    store,
		cfg:        cfg,
		httpClient: &http.Client{},
	}

	if cfg.Session.CleanupInterval > 0 {
		go cs.cleanupOldSessions()
	}

	return cs
}

// newClient リクエストに載ってきた設定からクライアントを組み立てる。
// クライアント設定が空ならサーバー側デフォルトのキーを使う。
func (s *ChatService) newClient(cc model.ClientConfig) *gemini.Client {
	apiKey := cc.APIKey
	if apiKey == "" {
		apiKey = s.cfg.Gemini.APIKey
	}

	return gemini.NewClient(gemini.Config{
		APIKey:      apiKey,
		Model:       cc.Model,
		Temperature: cc.Temperature,
		MaxTokens:   cc.MaxTokens,
	},
		gemini.WithBaseURL(s.cfg.Gemini.BaseURL),
		gemini.WithTimeout(s.cfg.Gemini.Timeout),
		gemini.WithSampling(s.cfg.Gemini.TopP, s.cfg.Gemini.TopK),
		gemini.WithHTTPClient(s.httpClient),
	)
}

// Chat 非ストリーミングの1往復。応答全文を返す。
// セッションIDがあればユーザーターンと応答を永続化する。
func (s *ChatService) Chat(ctx context.Context, req *model.ChatRequest) (string, error) {
	client := s.newClient(req.Config)
	systemPrompt := prompt.BuildSystemPrompt(req.SelectedResume)

	if err := s.persistUserTurn(req); err != nil {
		return "", err
	}

	content, err := client.SendChatRequest(ctx, req.Messages, systemPrompt)
	if err != nil {
		return "", err
	}

	s.persistAssistantTurn(req.SessionID, content)
	return content, nil
}

// StreamChat ストリーミングの1往復。Geminiからの差分を累積し、
// ペーシングエンジン経由で累積テキストを1文字ずつチャネルへ流す。
// chunks が閉じたら完了。エラーは errs に最大1件。
//
// 同一セッションに対する同時送信の排他は呼び出し側（UIのbusyフラグ）の
// 責務で、このサービスは調停しない。
func (s *ChatService) StreamChat(ctx context.Context, req *model.ChatRequest) (<-chan model.StreamChunk, <-chan error) {
	chunks := make(chan model.StreamChunk, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		client := s.newClient(req.Config)
		systemPrompt := prompt.BuildSystemPrompt(req.SelectedResume)

		if err := s.persistUserTurn(req); err != nil {
			errs <- err
			return
		}

		pacer := NewPacer(CharDelay(req.StreamingSpeed), func(displayed string) {
			select {
			case chunks <- model.StreamChunk{Content: displayed, Role: model.RoleAssistant}:
			case <-ctx.Done():
			}
		})

		// 差分受信とペーシングを分離する。ネットワーク側は先行して
		// 受信を続け、表示側は自分のペースで追いかける
		deltas := make(chan string, 16)
		streamErr := make(chan error, 1)

		go func() {
			err := client.SendStreamingChatRequest(ctx, req.Messages, systemPrompt, func(delta string) {
				deltas <- delta
			})
			close(deltas)
			streamErr <- err
		}()

		var pending strings.Builder
		for delta := range deltas {
			pending.WriteString(delta)
			if err := pacer.Advance(ctx, pending.String()); err != nil {
				// キャンセル。受信側をドレインしてから抜ける
				for range deltas {
				}
				<-streamErr
				s.persistPartialAssistantTurn(req.SessionID, pacer.Displayed())
				errs <- err
				return
			}
		}

		if err := <-streamErr; err != nil {
			// 表示済みの部分テキストは巻き戻さない。
			// 永続化される会話履歴はユーザーが見たものと一致させる
			s.persistPartialAssistantTurn(req.SessionID, pacer.Displayed())
			errs <- err
			return
		}

		pacer.Flush(pending.String())
		s.persistAssistantTurn(req.SessionID, pending.String())
	}()

	return chunks, errs
}

// IsSessionEnding リクエスト末尾のユーザーターンが面談終了の合図かどうか。
func (s *ChatService) IsSessionEnding(req *model.ChatRequest) bool {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == model.RoleUser {
			return IsSessionEnding(req.Messages[i].Content)
		}
	}
	return false
}

// persistUserTurn リクエスト末尾のユーザーターンをセッションへ追記する。
// セッションIDが無ければ永続化しない（クライアント側管理のモード）。
func (s *ChatService) persistUserTurn(req *model.ChatRequest) error {
	if req.SessionID == "" || len(req.Messages) == 0 {
		return nil
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role != model.RoleUser {
		return nil
	}

	if _, err := s.storage.GetSession(req.SessionID); err != nil {
		return fmt.Errorf("session not found: %s", req.SessionID)
	}

	if _, err := s.AddMessage(req.SessionID, model.RoleUser, last.Content); err != nil {
		return err
	}
	return nil
}

func (s *ChatService) persistAssistantTurn(sessionID, content string) {
	if sessionID == "" || content == "" {
		return
	}
	if _, err := s.AddMessage(sessionID, model.RoleAssistant, content); err != nil {
		logger.Errorf("アシスタントメッセージの保存に失敗: %v", err)
	}
}

// persistPartialAssistantTurn ストリーム異常終了時。表示済みの途中経過を
// そのまま保存する。
func (s *ChatService) persistPartialAssistantTurn(sessionID, displayed string) {
	s.persistAssistantTurn(sessionID, displayed)
}

// GenerateFeedback 面談全文に対する講評を、ロールプレイとは独立した
// 2回目の非ストリーミングリクエストで生成する。ベストエフォートであり、
// 失敗しても元の会話とセッション状態には影響しない。
func (s *ChatService) GenerateFeedback(ctx context.Context, req *model.FeedbackRequest) (string, error) {
	client := s.newClient(req.Config)

	feedbackMessage := model.Message{
		ID:        "feedback-request",
		Role:      model.RoleUser,
		Content:   prompt.BuildFeedbackMessage(req.Messages, req.SelectedResume),
		Timestamp: time.Now(),
	}

	// 評価プロンプトは本文に織り込み済みなのでシステムプロンプトは空で渡す
	feedback, err := client.SendChatRequest(ctx, []model.Message{feedbackMessage}, "")
	if err != nil {
		return "", fmt.Errorf("フィードバックの生成に失敗しました: %w", err)
	}

	return feedback, nil
}

// TestConnection 渡された設定で疎通確認する。
func (s *ChatService) TestConnection(ctx context.Context, cc model.ClientConfig) error {
	return s.newClient(cc).TestConnection(ctx)
}

func (s *ChatService) CreateSession(title, scenarioID string) (*model.Session, error) {
	if title == "" {
		title = "新しいチャット " + time.Now().Format("2006-01-02 15:04")
	}

	session := &model.Session{
		ID:         uuid.New().String(),
		Title:      title,
		ScenarioID: scenarioID,
		Messages:   make([]model.Message, 0),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	// 冒頭はシナリオ人物の挨拶から始まる
	greeting := model.Message{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Role:      model.RoleAssistant,
		Content:   prompt.BuildGreeting(scenarioID),
		Timestamp: time.Now(),
	}
	session.Messages = append(session.Messages, greeting)

	if err := s.storage.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

func (s *ChatService) GetSession(sessionID string) (*model.Session, error) {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

func (s *ChatService) GetSessionMessages(sessionID string) ([]model.Message, error) {
	messages, err := s.storage.GetMessages(sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	return messages, nil
}

func (s *ChatService) AddMessage(sessionID, role, content string) (*model.Message, error) {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	message := &model.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}

	if err := s.storage.AddMessage(sessionID, message); err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}

	// 最初のユーザー発言をタイトルに反映する
	if role == model.RoleUser && strings.HasPrefix(session.Title, "新しいチャット") {
		session.Title = truncateRunes(content, 30)
		session.UpdatedAt = time.Now()
		if err := s.storage.UpdateSession(session); err != nil {
			logger.Warnf("セッションタイトルの更新に失敗: %v", err)
		}
	}

	return message, nil
}

func (s *ChatService) UpdateSessionTitle(sessionID, title string) error {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return fmt.Errorf("session not found: %s", sessionID)
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	session.Title = title
	session.UpdatedAt = time.Now()

	if err := s.storage.UpdateSession(session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

func (s *ChatService) GetAllSessions() ([]*model.Session, error) {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

func (s *ChatService) DeleteSession(sessionID string) error {
	if err := s.storage.DeleteSession(sessionID); err != nil {
		if err == storage.ErrSessionNotFound {
			return fmt.Errorf("session not found: %s", sessionID)
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (s *ChatService) ClearAllSessions() error {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, session := range sessions {
		if err := s.storage.DeleteSession(session.ID); err != nil {
			logger.Errorf("セッション %s の削除に失敗: %v", session.ID, err)
		}
	}

	return nil
}

func (s *ChatService) GetStorage() storage.Storage {
	return s.storage
}

func (s *ChatService) cleanupOldSessions() {
	ticker := time.NewTicker(s.cfg.Session.CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		sessions, err := s.storage.ListSessions()
		if err != nil {
			logger.Errorf("クリーンアップ用のセッション一覧取得に失敗: %v", err)
			continue
		}

		cutoff := time.Now().Add(-s.cfg.Session.TTL)
		for _, session := range sessions {
			if session.UpdatedAt.Before(cutoff) {
				if err := s.storage.DeleteSession(session.ID); err != nil {
					logger.Errorf("期限切れセッション %s の削除に失敗: %v", session.ID, err)
				} else {
					logger.Infof("期限切れセッションを削除: %s", session.ID)
				}
			}
		}
	}
}

func truncateRunes(str string, maxLen int) string {
	runes := []rune(str)
	if len(runes) <= maxLen {
		return str
	}
	return string(runes[:maxLen]) + "..."
}
