package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hokensim-backend/internal/model"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Config リクエスト1回分の接続設定スナップショット。
// 呼び出し側（設定ストア）が所有し、処理中の設定変更は反映されない。
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client Gemini APIクライアント。リクエストごとに生成する。
// グローバルなシングルトンは持たない。
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	topP       float64
	topK       int
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout 非ストリーミング呼び出しのハードタイムアウト。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithSampling(topP float64, topK int) Option {
	return func(c *Client) {
		c.topP = topP
		c.topK = topK
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	c := &Client{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		timeout: 60 * time.Second,
		topP:    0.92,
		topK:    50,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c
}

// IsValidAPIKey Gemini APIキーの形式チェック。10文字超かつ "AIza" で始まる。
func IsValidAPIKey(apiKey string) bool {
	return len(apiKey) > 10 && strings.HasPrefix(apiKey, "AIza")
}

// SendChatRequest 非ストリーミングの generateContent 呼び出し。
// 応答全文を一度に返す。リトライはしない。リトライするかどうかは
// トークンコストを伴う判断なので呼び出し側に委ねる。
func (c *Client) SendChatRequest(ctx context.Context, messages []model.Message, systemPrompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrAPIKeyMissing
	}

	reqBody, err := c.buildRequestBody(messages, systemPrompt)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: リクエストのエンコードに失敗: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: リクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &ProviderError{Status: resp.StatusCode, Body: string(body)}
	}

	var data generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("gemini: レスポンスのデコードに失敗: %w", err)
	}

	content := data.firstText()
	if content == "" {
		return "", ErrEmptyResponse
	}

	return content, nil
}

// TestConnection モデル一覧エンドポイントで疎通確認する。
func (c *Client) TestConnection(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return ErrAPIKeyMissing
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/models?key=%s", c.baseURL, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: 接続テストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &ProviderError{Status: resp.StatusCode, Body: string(body)}
	}

	return nil
}
