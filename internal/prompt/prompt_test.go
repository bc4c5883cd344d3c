package prompt

import (
	"strings"
	"testing"

	"hokensim-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSystemPrompt(t *testing.T) {
	p := BuildSystemPrompt("cooperative-motivated")
	assert.Contains(t, p, "佐藤健一")
	assert.Contains(t, p, "ロールプレイ")

	// 未知・未選択はデフォルトプロンプト
	def := BuildSystemPrompt("")
	assert.Contains(t, def, "シナリオが選択されていません")
	assert.Equal(t, def, BuildSystemPrompt("no-such-scenario"))
}

func TestBuildGreeting(t *testing.T) {
	g := BuildGreeting("defensive-denial")
	assert.Contains(t, g, "山田")

	assert.Contains(t, BuildGreeting(""), "シナリオを選択")
}

func TestBuildFeedbackMessage(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleAssistant, Content: "こんにちは、佐藤です。"},
		{Role: model.RoleUser, Content: "よろしくお願いします。"},
	}

	msg := BuildFeedbackMessage(messages, "cooperative-motivated")
	assert.Contains(t, msg, "保健師教育の専門家")
	assert.Contains(t, msg, "**対象者**: こんにちは、佐藤です。")
	assert.Contains(t, msg, "**保健師**: よろしくお願いします。")
	// ロールの並び順は会話ログそのまま
	require.Less(t, strings.Index(msg, "**対象者**"), strings.Index(msg, "**保健師**"))
}

func TestScenarioRegistry(t *testing.T) {
	ids := ScenarioIDs()
	assert.Len(t, ids, 6)

	for _, id := range ids {
		s, ok := GetScenario(id)
		require.True(t, ok, "id=%s", id)
		assert.NotEmpty(t, s.Greeting)
		assert.NotEmpty(t, s.Background)
	}
}
