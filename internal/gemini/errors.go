package gemini

import (
	"errors"
	"fmt"
)

var (
	// ErrAPIKeyMissing APIキー未設定。ネットワークI/Oの前に検出される。
	ErrAPIKeyMissing = errors.New("gemini: APIキーが設定されていません")

	// ErrEmptyResponse 2xxだが candidates[0].content.parts[0].text が取れない。
	// セーフティフィルタで候補が落ちた場合など。空文字の成功として扱ってはいけない。
	ErrEmptyResponse = errors.New("gemini: APIからの応答が空です")
)

// ProviderError 非2xx応答。生のボディを保持する（セーフティブロックの
// 理由がボディに入っているため、握りつぶさない）。
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("gemini: APIエラー: %d - %s", e.Status, e.Body)
}

// StreamError ストリーム読み取り中のトランスポート障害。
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("gemini: ストリーミングエラー: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
