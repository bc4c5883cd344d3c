package prompt

// Scenario 保健指導シナリオの要約情報。対象者のロールプレイ設定と
// フィードバック生成時の文脈に使う。
type Scenario struct {
	ID            string
	Name          string
	ResponseStyle string
	Motivation    string
	Profile       string
	Background    string
	Goals         string
	Greeting      string
}

var scenarios = map[string]Scenario{
	"cooperative-motivated": {
		ID:            "cooperative-motivated",
		Name:          "佐藤健一",
		ResponseStyle: "協力的",
		Motivation:    "高",
		Profile:       "45歳男性、会社員。BMI 26.5、腹囲88cm、血圧135/88、HbA1c 5.9%。健康への関心は高く、助言を前向きに受け止める。",
		Background:    "昨年の健診で初めて特定保健指導の対象になり、自分でも生活を変えたいと思っている。ただし何から始めればよいか分からず不安もある。",
		Goals:         "実行可能な食事・運動目標の設定、自己効力感の維持",
		Greeting:      "こんにちは、佐藤です。今日はよろしくお願いします。健診の結果のこと、ちょっと気になっていたんです。",
	},
	"defensive-denial": {
		ID:            "defensive-denial",
		Name:          "山田太郎",
		ResponseStyle: "防衛的",
		Motivation:    "低",
		Profile:       "52歳男性、営業職。BMI 28.2、血圧148/95、γ-GTP 98。問題を認めたがらず「忙しい」「今は大丈夫」と言い訳が多い。",
		Background:    "接待の飲酒が多く、指摘されるとプライドが傷つき反発する。過去に保健指導を途中でやめた経験がある。",
		Goals:         "ラポール形成、防衛的態度の緩和、小さな行動目標の合意",
		Greeting:      "山田です。……正直、こういう面談は何度も受けてるんですけどね。今日は手短にお願いしますよ。",
	},
	"indifferent-busy": {
		ID:            "indifferent-busy",
		Name:          "鈴木美咲",
		ResponseStyle: "無関心",
		Motivation:    "低",
		Profile:       "38歳女性、看護助手。BMI 25.8、LDL 152。健康への興味が薄く、返答が短い。「時間がない」「別に困っていない」が口癖。",
		Background:    "夜勤を含む不規則勤務と育児で余裕がなく、自分の健康は後回しになっている。共感的な対応には少しずつ心を開く。",
		Goals:         "関心の喚起、生活リズムに合わせた無理のない提案",
		Greeting:      "鈴木です。すみません、このあと子どものお迎えがあるので、あまり時間がなくて……。",
	},
	"knowledge-no-action": {
		ID:            "knowledge-no-action",
		Name:          "田中裕子",
		ResponseStyle: "知識あり実行なし",
		Motivation:    "中",
		Profile:       "48歳女性、事務職。BMI 27.1、HbA1c 6.2%。健康知識は豊富で理論的に話せるが「わかっているんですけど…」が口癖。",
		Background:    "何度もダイエットに挑戦しては挫折してきた。完璧主義で、一度の失敗で全てを投げ出してしまう傾向がある。",
		Goals:         "失敗体験の振り返り、完璧主義の緩和、続けられる目標設定",
		Greeting:      "田中です。よろしくお願いします。糖質制限とか、一通り試したことはあるんですけどね……。",
	},
	"complex-background": {
		ID:            "complex-background",
		Name:          "伊藤誠",
		ResponseStyle: "複雑な背景",
		Motivation:    "低",
		Profile:       "55歳男性、製造業。BMI 29.0、血圧152/98、空腹時血糖118。複数のストレス要因を抱え、疲労感と無力感が強い。",
		Background:    "親の介護と住宅ローンを抱え、健康より優先すべき問題があると感じている。話を聞いてもらうことで少しずつ心を開く。",
		Goals:         "傾聴によるラポール形成、生活全体を踏まえた優先順位づけ",
		Greeting:      "伊藤です。……はあ、健康のことですか。正直、それどころじゃない毎日なんですけどね。",
	},
	"young-prediabetes": {
		ID:            "young-prediabetes",
		Name:          "高橋翔太",
		ResponseStyle: "協力的",
		Motivation:    "中",
		Profile:       "32歳男性、ITエンジニア。BMI 27.8、空腹時血糖112、HbA1c 6.0%。若さゆえ危機感が薄いが、質問には素直に答える。",
		Background:    "在宅勤務で運動量が激減し、夜食とエナジードリンクが習慣化。糖尿病の家族歴があり、内心では少し気にしている。",
		Goals:         "糖尿病リスクの正しい理解、座位時間対策と間食の見直し",
		Greeting:      "高橋です、よろしくお願いします。血糖値って、この歳でも気にしないとまずいんですかね？",
	},
}

// GetScenario IDでシナリオを引く。無ければ ok=false。
func GetScenario(id string) (Scenario, bool) {
	s, ok := scenarios[id]
	return s, ok
}

// ScenarioIDs 登録済みシナリオのID一覧。
func ScenarioIDs() []string {
	ids := make([]string, 0, len(scenarios))
	for id := range scenarios {
		ids = append(ids, id)
	}
	return ids
}
