package prompt

import (
	"fmt"
	"strings"

	"hokensim-backend/internal/model"
)

// 保健指導ロールプレイのベースプロンプト。
const basePrompt = `あなたは特定保健指導を受ける対象者としてロールプレイを行うAIです。保健師からの質問や助言に対して、提供されたシナリオの人物として自然にリアルに反応してください。

## 基本的な行動指針
- シナリオに設定された性格・心理プロフィールに基づいて一貫した反応をする
- 応答スタイル（協力的・防衛的・無関心など）を忠実に演じる
- 実際の対象者のように、すぐには心を開かないこともある
- 保健師の話し方や態度によって、反応を変える
- シナリオにない情報を勝手に作り出さない
- 前の発言と矛盾しない

## 面談の終了について
保健師が「これで面談を終了します」「今日はこれで終わりにしましょう」などの終了を告げる言葉を使った場合は、お礼を述べて面談を終了してください。

IMPORTANT: あなたは以下のシナリオの人物として、リアルに演じてください：`

// シナリオ未選択時のデフォルトプロンプト。
const defaultPrompt = `現在、保健指導のシナリオが選択されていません。

設定画面（⚙️）からシナリオを選択してください。シナリオを選択すると、その対象者との模擬保健指導面談が始まります。

シナリオを選択後、保健師として面談を開始してください。`

// フィードバック生成用の評価プロンプト。ロールプレイ用とは独立。
const feedbackPrompt = `あなたは保健師教育の専門家です。以下の保健指導面談の会話ログを分析し、保健師（ユーザー）の対応について、建設的なフィードバックを提供してください。

## フィードバックの観点
1. コミュニケーション技術（傾聴、ラポール形成、共感的応答）
2. 動機づけ面接技法（準備性の見極め、自己効力感の向上）
3. 情報提供と教育（正確性、わかりやすさ）
4. 目標設定と行動計画（具体性、実現可能性、対象者主体）
5. 対応の適切性（応答スタイルへの対応、防衛的態度への対処）

## フィードバック形式
**良かった点（2-3点）**
- 具体的な発言や対応を引用して評価

**改善点（2-3点）**
- より良いアプローチの提案と具体的な代替案

**総合評価**
- 全体的な面談の質と特に注目すべき点

フィードバックは建設的で、具体的で、実践的なアドバイスを含めてください。`

// BuildSystemPrompt シナリオIDからロールプレイ用システムプロンプトを組む。
// 未選択・未知のIDならデフォルトプロンプトを返す。
func BuildSystemPrompt(scenarioID string) string {
	s, ok := GetScenario(scenarioID)
	if !ok {
		return defaultPrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	fmt.Fprintf(&b, "\n\n## あなたが演じる人物のプロフィール\n")
	fmt.Fprintf(&b, "- 氏名: %s\n", s.Name)
	fmt.Fprintf(&b, "- プロフィール: %s\n", s.Profile)
	fmt.Fprintf(&b, "- 応答スタイル: %s\n", s.ResponseStyle)
	fmt.Fprintf(&b, "- 動機づけレベル: %s\n", s.Motivation)
	fmt.Fprintf(&b, "\n**背景ストーリー:**\n%s\n", s.Background)
	fmt.Fprintf(&b, "\nこのシナリオでは、あなたは「%s」な対象者を演じます。この性格特性を常に意識し、保健師の対応に応じてリアルな反応を示してください。", s.ResponseStyle)
	return b.String()
}

// BuildGreeting 新規セッション冒頭のアシスタント挨拶文。
func BuildGreeting(scenarioID string) string {
	s, ok := GetScenario(scenarioID)
	if !ok {
		return "現在、面談用のシナリオが選択されていません。\n\n設定画面（⚙️）からシナリオを選択してください。シナリオを選択すると、その対象者との模擬面談が始まります。"
	}
	return s.Greeting
}

// BuildFeedbackMessage 面談全文とシナリオ文脈から、フィードバック生成用の
// 単一userターンを組み立てる。
func BuildFeedbackMessage(messages []model.Message, scenarioID string) string {
	var scenarioContext string
	if s, ok := GetScenario(scenarioID); ok {
		scenarioContext = fmt.Sprintf(`
## 対象者のプロフィール
- 名前: %s
- 応答スタイル: %s
- 動機づけレベル: %s

## このシナリオの特徴
%s

## 期待される指導目標
%s
`, s.Name, s.ResponseStyle, s.Motivation, s.Background, s.Goals)
	}

	var log strings.Builder
	for i, msg := range messages {
		role := "対象者"
		if msg.Role == model.RoleUser {
			role = "保健師"
		}
		if i > 0 {
			log.WriteString("\n\n")
		}
		fmt.Fprintf(&log, "**%s**: %s", role, msg.Content)
	}

	return fmt.Sprintf("%s\n%s\n## 面談の会話ログ\n\n%s\n\n上記の面談について、詳細なフィードバックをお願いします。", feedbackPrompt, scenarioContext, log.String())
}
