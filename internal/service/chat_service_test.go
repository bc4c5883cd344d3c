package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hokensim-backend/internal/config"
	"hokensim-backend/internal/gemini"
	"hokensim-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "AIzaTestKey0123456789"

func newTestService(t *testing.T, baseURL string) *ChatService {
	t.Helper()
	cfg := &config.Config{
		Gemini: config.GeminiConfig{
			BaseURL: baseURL,
			Timeout: 5 * time.Second,
			TopP:    0.92,
			TopK:    50,
		},
		Storage: config.StorageConfig{Type: "memory"},
	}
	return NewChatService(cfg)
}

func candidateJSON(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"}}]}`, text)
}

// 挨拶つきセッションに「こんにちは」を送ると、2断片の応答が累積表示され、
// 完了時に全文がアシスタントターンとして保存される。
func TestStreamChatEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, ":streamGenerateContent")
		// 2オブジェクトを1チャンクで返す
		fmt.Fprint(w, "["+candidateJSON("こん")+","+candidateJSON("にちは！")+"]")
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL)

	session, err := svc.CreateSession("面談テスト", "cooperative-motivated")
	require.NoError(t, err)
	require.Len(t, session.Messages, 1) // 挨拶

	userTurn := model.Message{ID: "u1", Role: model.RoleUser, Content: "こんにちは", Timestamp: time.Now()}
	req := &model.ChatRequest{
		Messages:       append(append([]model.Message{}, session.Messages...), userTurn),
		Config:         model.ClientConfig{APIKey: testAPIKey},
		SelectedResume: "cooperative-motivated",
		StreamingSpeed: SpeedFast,
		SessionID:      session.ID,
	}

	chunks, errs := svc.StreamChat(context.Background(), req)

	full := "こんにちは！"
	var last string
	prev := 0
	for chunk := range chunks {
		assert.Equal(t, model.RoleAssistant, chunk.Role)
		assert.True(t, strings.HasPrefix(full, chunk.Content))
		assert.Greater(t, len([]rune(chunk.Content)), prev)
		prev = len([]rune(chunk.Content))
		last = chunk.Content
	}
	assert.Equal(t, full, last)

	err, ok := <-errs
	assert.False(t, ok)
	assert.NoError(t, err)

	messages, err := svc.GetSessionMessages(session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3) // 挨拶 + ユーザー + アシスタント
	assert.Equal(t, model.RoleUser, messages[1].Role)
	assert.Equal(t, "こんにちは", messages[1].Content)
	assert.Equal(t, model.RoleAssistant, messages[2].Role)
	assert.Equal(t, full, messages[2].Content)
}

func TestStreamChatProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"internal"}}`)
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL)

	session, err := svc.CreateSession("エラーテスト", "")
	require.NoError(t, err)

	req := &model.ChatRequest{
		Messages:       []model.Message{{ID: "u1", Role: model.RoleUser, Content: "こんにちは"}},
		Config:         model.ClientConfig{APIKey: testAPIKey},
		StreamingSpeed: SpeedFast,
		SessionID:      session.ID,
	}

	chunks, errs := svc.StreamChat(context.Background(), req)

	for range chunks {
	}

	var provErr *gemini.ProviderError
	require.ErrorAs(t, <-errs, &provErr)
	assert.Equal(t, http.StatusInternalServerError, provErr.Status)

	// 応答が1文字も出ていないのでアシスタントターンは保存されない
	messages, err := svc.GetSessionMessages(session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2) // 挨拶 + ユーザー
	assert.Equal(t, model.RoleUser, messages[1].Role)
}

func TestIsSessionEndingUsesLastUserTurn(t *testing.T) {
	svc := newTestService(t, "http://unused")

	req := &model.ChatRequest{
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "これで面談を終了します。"},
			{Role: model.RoleAssistant, Content: "ありがとうございました。"},
		},
	}
	assert.True(t, svc.IsSessionEnding(req))

	req = &model.ChatRequest{
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "面談を終了します"},
			{Role: model.RoleAssistant, Content: "はい"},
			{Role: model.RoleUser, Content: "最近の体調はどうですか？"},
		},
	}
	assert.False(t, svc.IsSessionEnding(req))
}

// フィードバックは会話本体とは独立した単発リクエストで、
// ロールプレイ用のシステムプロンプトは注入されない。
func TestGenerateFeedback(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, candidateJSON("**良かった点**\n- 傾聴ができていました"))
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL)

	req := &model.FeedbackRequest{
		Messages: []model.Message{
			{Role: model.RoleAssistant, Content: "こんにちは、佐藤です。"},
			{Role: model.RoleUser, Content: "よろしくお願いします。"},
		},
		Config:         model.ClientConfig{APIKey: testAPIKey},
		SelectedResume: "cooperative-motivated",
	}

	feedback, err := svc.GenerateFeedback(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, feedback, "良かった点")

	assert.Contains(t, gotBody, "保健師教育の専門家")
	assert.Contains(t, gotBody, "面談の会話ログ")
	// ロールプレイ指示が混ざっていないこと
	assert.NotContains(t, gotBody, "ロールプレイを行うAI")
}

func TestGenerateFeedbackFailureLeavesSessionIntact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota"}}`)
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL)

	session, err := svc.CreateSession("面談", "defensive-denial")
	require.NoError(t, err)
	before, err := svc.GetSessionMessages(session.ID)
	require.NoError(t, err)

	req := &model.FeedbackRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: "お願いします"}},
		Config:   model.ClientConfig{APIKey: testAPIKey},
	}

	_, err = svc.GenerateFeedback(context.Background(), req)
	assert.Error(t, err)

	after, err := svc.GetSessionMessages(session.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestChatNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, ":generateContent")
		fmt.Fprint(w, candidateJSON("はじめまして。佐藤です。"))
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL)

	req := &model.ChatRequest{
		Messages: []model.Message{{ID: "u1", Role: model.RoleUser, Content: "こんにちは"}},
		Config:   model.ClientConfig{APIKey: testAPIKey},
	}

	content, err := svc.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "はじめまして。佐藤です。", content)
}

func TestCreateSessionStartsWithGreeting(t *testing.T) {
	svc := newTestService(t, "http://unused")

	session, err := svc.CreateSession("", "cooperative-motivated")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(session.Title, "新しいチャット"))
	require.Len(t, session.Messages, 1)
	assert.Equal(t, model.RoleAssistant, session.Messages[0].Role)
	assert.NotEmpty(t, session.Messages[0].Content)
}

func TestAddMessageAutoTitle(t *testing.T) {
	svc := newTestService(t, "http://unused")

	session, err := svc.CreateSession("", "")
	require.NoError(t, err)

	long := strings.Repeat("あ", 40)
	_, err = svc.AddMessage(session.ID, model.RoleUser, long)
	require.NoError(t, err)

	got, err := svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("あ", 30)+"...", got.Title)
}
