package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"hokensim-backend/internal/model"
	"hokensim-backend/pkg/logger"
)

// SendStreamingChatRequest streamGenerateContent を呼び、増分テキストが
// 取れるたびに onDelta を呼ぶ。onDelta に渡るのは差分そのもので、累積は
// 呼び出し側の責務。ストリームが正常終了したら nil を返す。
//
// ストリーム本文は連結されたJSONオブジェクト列で、行区切りもSSEフレーム
// も保証されない。objectScanner で完結したオブジェクト単位に再組み立て
// する。個々の断片のパース失敗は一時的な状態として黙って読み飛ばし、
// トランスポート障害だけを致命的エラーとして返す。
//
// ctx のキャンセルはHTTP呼び出しと読み取りループの両方に効く。
func (c *Client) SendStreamingChatRequest(ctx context.Context, messages []model.Message, systemPrompt string, onDelta func(string)) error {
	if c.cfg.APIKey == "" {
		return ErrAPIKeyMissing
	}

	reqBody, err := c.buildRequestBody(messages, systemPrompt)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("gemini: リクエストのエンコードに失敗: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?key=%s", c.baseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &StreamError{Err: err}
	}
	defer resp.Body.Close()

	// ステータス確認は読み取りループに入る前に一度だけ
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &ProviderError{Status: resp.StatusCode, Body: string(body)}
	}

	scanner := &objectScanner{}
	buf := make([]byte, 4096)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			scanner.append(buf[:n])

			for {
				obj := scanner.next()
				if obj == nil {
					break
				}

				var chunk generateResponse
				if err := json.Unmarshal(obj, &chunk); err != nil {
					// 不完全・不正な断片は想定内。スキップして先へ進む
					logger.Debugf("ストリーミング断片のパースをスキップ: %v", err)
					continue
				}

				if text := chunk.firstText(); text != "" {
					onDelta(text)
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return &StreamError{Err: ctxErr}
			}
			return &StreamError{Err: readErr}
		}
	}
}
