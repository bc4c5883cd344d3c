package model

// ClientConfig ブラウザ側の設定画面で入力されるGemini接続設定。
// リクエストごとのスナップショットとして扱い、処理中の設定変更の影響を受けない。
type ClientConfig struct {
	APIKey      string  `json:"apiKey"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

// ChatRequest メッセージ有無やAPIキーの検証はハンドラ側で行い、
// 日本語のエラーメッセージを返す。bindingタグでの必須指定はしない。
type ChatRequest struct {
	Messages       []Message    `json:"messages"`
	Config         ClientConfig `json:"config"`
	SelectedResume string       `json:"selectedResume"`
	StreamingSpeed string       `json:"streamingSpeed"`
	SessionID      string       `json:"sessionId"`
}

type FeedbackRequest struct {
	Messages       []Message    `json:"messages"`
	Config         ClientConfig `json:"config"`
	SelectedResume string       `json:"selectedResume"`
}

type TestConnectionRequest struct {
	Config ClientConfig `json:"config"`
}

type CreateSessionRequest struct {
	Title      string `json:"title"`
	ScenarioID string `json:"scenarioId"`
}
