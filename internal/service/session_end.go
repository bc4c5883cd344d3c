package service

import "regexp"

// 面談終了を告げる定型句。保健師（ユーザー）の最新発言にだけ適用する。
// 正規表現ベースの近似的な検出であり、堅い状態遷移ではない。
var sessionEndPatterns = []*regexp.Regexp{
	regexp.MustCompile(`面談を終了`),
	regexp.MustCompile(`今日はこれで終わり`),
	regexp.MustCompile(`本日はこれで終わり`),
	regexp.MustCompile(`以上で(面談|終了|終わり)`),
	regexp.MustCompile(`これで(終了|終わり)に?しま`),
	regexp.MustCompile(`ありがとうございました。?\s*失礼`),
	regexp.MustCompile(`(?i)ending the (meeting|session)`),
	regexp.MustCompile(`(?i)(guidance )?session is now ending`),
	regexp.MustCompile(`(?i)that'?s all for today`),
}

// IsSessionEnding 最新のユーザー発言が面談の締めくくりかどうかを判定する。
// 副作用なし。マッチしなければ false。
func IsSessionEnding(latestUserText string) bool {
	for _, p := range sessionEndPatterns {
		if p.MatchString(latestUserText) {
			return true
		}
	}
	return false
}
