package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hokensim-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "AIzaTestKey0123456789"

func testMessages() []model.Message {
	return []model.Message{
		{ID: "1", Role: model.RoleUser, Content: "こんにちは"},
	}
}

func candidateJSON(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"}}]}`, text)
}

func TestIsValidAPIKey(t *testing.T) {
	tests := []struct {
		apiKey string
		want   bool
	}{
		{"AIzaSyExampleKey12345", true},
		{"AIzaabcdefg", true}, // 11文字、境界
		{"AIzaShort", false},  // 10文字以下
		{"sk-abcdefghijklmn", false},
		{"", false},
		{"aizaSyExampleKey12345", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidAPIKey(tt.apiKey), "apiKey=%q", tt.apiKey)
	}
}

func TestSendChatRequestSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash:generateContent")
		assert.Equal(t, testAPIKey, r.URL.Query().Get("key"))

		fmt.Fprint(w, candidateJSON("はじめまして。"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: testAPIKey}, WithBaseURL(srv.URL))

	content, err := c.SendChatRequest(context.Background(), testMessages(), "プロンプト")
	require.NoError(t, err)
	assert.Equal(t, "はじめまして。", content)
}

func TestSendChatRequestMissingAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("キー未設定なのにリクエストが飛んだ")
	}))
	defer srv.Close()

	c := NewClient(Config{}, WithBaseURL(srv.URL))

	_, err := c.SendChatRequest(context.Background(), testMessages(), "")
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestSendChatRequestProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"API key not valid"}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: testAPIKey}, WithBaseURL(srv.URL))

	_, err := c.SendChatRequest(context.Background(), testMessages(), "")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadRequest, provErr.Status)
	assert.Contains(t, provErr.Body, "API key not valid")
}

func TestSendChatRequestEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// セーフティフィルタで候補が落ちたケース
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: testAPIKey}, WithBaseURL(srv.URL))

	_, err := c.SendChatRequest(context.Background(), testMessages(), "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestTestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		fmt.Fprint(w, `{"models":[]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: testAPIKey}, WithBaseURL(srv.URL))
	assert.NoError(t, c.TestConnection(context.Background()))
}

func TestSendStreamingChatRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":streamGenerateContent")

		flusher := w.(http.Flusher)
		stream := "[" + candidateJSON("こん") + ",\r\n" + candidateJSON("にちは！") + "]"

		// チャンク境界をオブジェクト境界とずらして送る
		mid := len(stream)/2 + 1
		fmt.Fprint(w, stream[:mid])
		flusher.Flush()
		fmt.Fprint(w, stream[mid:])
		flusher.Flush()
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: testAPIKey}, WithBaseURL(srv.URL))

	var deltas []string
	err := c.SendStreamingChatRequest(context.Background(), testMessages(), "プロンプト", func(delta string) {
		deltas = append(deltas, delta)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"こん", "にちは！"}, deltas)
}

// 不正な断片は読み飛ばし、前後の正常なオブジェクトは生かす。
func TestSendStreamingChatRequestSkipsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateJSON("こん"))
		fmt.Fprint(w, `{broken fragment}`)
		fmt.Fprint(w, candidateJSON("にちは！"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: testAPIKey}, WithBaseURL(srv.URL))

	var deltas []string
	err := c.SendStreamingChatRequest(context.Background(), testMessages(), "", func(delta string) {
		deltas = append(deltas, delta)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"こん", "にちは！"}, deltas)
}

func TestSendStreamingChatRequestProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded"}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: testAPIKey}, WithBaseURL(srv.URL))

	err := c.SendStreamingChatRequest(context.Background(), testMessages(), "", func(string) {})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusServiceUnavailable, provErr.Status)
}

func TestSendStreamingChatRequestCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateJSON("こん"))
		w.(http.Flusher).Flush()
		// キャンセルされるまで接続を保持する
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: testAPIKey}, WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var deltas []string
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.SendStreamingChatRequest(ctx, testMessages(), "", func(delta string) {
			deltas = append(deltas, delta)
			cancel()
		})
	}()

	select {
	case err := <-errCh:
		var streamErr *StreamError
		require.ErrorAs(t, err, &streamErr)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("キャンセル後もストリームが終了しない")
	}

	assert.Equal(t, []string{"こん"}, deltas)
}

// 会話全体でプロンプトが一度だけ注入されてワイヤに乗ることの確認。
func TestStreamingRequestBodyInjection(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, candidateJSON("ok"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: testAPIKey}, WithBaseURL(srv.URL))

	messages := []model.Message{
		{ID: "1", Role: model.RoleAssistant, Content: "挨拶"},
		{ID: "2", Role: model.RoleUser, Content: "一言目"},
		{ID: "3", Role: model.RoleAssistant, Content: "返事"},
		{ID: "4", Role: model.RoleUser, Content: "二言目"},
	}

	err := c.SendStreamingChatRequest(context.Background(), messages, "指示文", func(string) {})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(gotBody, "指示文"))
	assert.Contains(t, gotBody, `ユーザー: 一言目`)
}
