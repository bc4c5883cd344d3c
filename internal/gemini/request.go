package gemini

import (
	"fmt"

	"hokensim-backend/internal/model"
)

// Gemini generateContent のワイヤ形式。

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []Part `json:"parts"`
			Role  string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// firstText candidates[0].content.parts[0].text を取り出す。無ければ空文字。
func (r *generateResponse) firstText() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}

var defaultSafetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

// convertContents 会話ターン列をGemini形式に変換する。
// システムプロンプトは会話全体で最初のuserターンに一度だけ前置する。
// 2つ目以降のuserターンには付けない。空のプロンプトなら前置しない。
func convertContents(messages []model.Message, systemPrompt string) ([]Content, error) {
	contents := make([]Content, 0, len(messages))
	seenFirstUser := false

	for _, msg := range messages {
		if msg.Content == "" {
			return nil, fmt.Errorf("gemini: メッセージ %s の本文が空です", msg.ID)
		}

		if msg.Role == model.RoleUser && !seenFirstUser && systemPrompt != "" {
			seenFirstUser = true
			contents = append(contents, Content{
				Role:  "user",
				Parts: []Part{{Text: fmt.Sprintf("%s\n\n---\n\nユーザー: %s", systemPrompt, msg.Content)}},
			})
			continue
		}

		role := "user"
		if msg.Role == model.RoleAssistant {
			role = "model"
		}
		contents = append(contents, Content{
			Role:  role,
			Parts: []Part{{Text: msg.Content}},
		})
	}

	return contents, nil
}

func (c *Client) buildRequestBody(messages []model.Message, systemPrompt string) (*generateRequest, error) {
	contents, err := convertContents(messages, systemPrompt)
	if err != nil {
		return nil, err
	}

	return &generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: maxOutputTokensFor(c.cfg.Model, c.cfg.MaxTokens),
			TopP:            c.topP,
			TopK:            c.topK,
		},
		SafetySettings: defaultSafetySettings,
	}, nil
}
