package gemini

// ModelInfo 利用可能なGeminiモデルの定義。
type ModelInfo struct {
	Name            string
	MaxOutputTokens int
}

var Models = map[string]ModelInfo{
	"gemini-2.5-pro":        {Name: "Gemini 2.5 Pro", MaxOutputTokens: 4000},
	"gemini-2.5-flash":      {Name: "Gemini 2.5 Flash", MaxOutputTokens: 8000},
	"gemini-2.5-flash-lite": {Name: "Gemini 2.5 Flash Lite", MaxOutputTokens: 8000},
}

const DefaultModel = "gemini-2.5-flash"

func maxOutputTokensFor(model string, fallback int) int {
	if info, ok := Models[model]; ok {
		return info.MaxOutputTokens
	}
	if fallback > 0 {
		return fallback
	}
	return Models[DefaultModel].MaxOutputTokens
}
