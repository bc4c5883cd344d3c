package gemini

import "bytes"

// objectScanner 区切り文字のないバイト列から完結したJSONオブジェクトを
// 切り出す。streamGenerateContent は行区切りを保証せず、1チャンクに複数
// オブジェクトが連結されて届くことも、1オブジェクトが複数チャンクに
// またがることもある。
//
// バイトバッファのまま走査し、完結したオブジェクト単位でしか切り出さない
// ため、マルチバイト文字がチャンク境界で分断されても壊れない。
// 波括弧の深さ計数は文字列リテラル内の { } を数えないよう、
// 文字列・エスケープ状態を追跡する。
type objectScanner struct {
	buf []byte
}

func (s *objectScanner) append(p []byte) {
	s.buf = append(s.buf, p...)
}

// next 次の完結した {...} 領域を返す。バッファ内に完結したオブジェクトが
// 無ければ nil を返し、未消費分を保持して次のチャンクを待つ。
// 消費済み領域はパース結果に関わらずバッファから取り除かれる。
func (s *objectScanner) next() []byte {
	start := bytes.IndexByte(s.buf, '{')
	if start < 0 {
		// オブジェクト開始が無い区間は捨てる
		s.buf = s.buf[:0]
		return nil
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s.buf); i++ {
		c := s.buf[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				obj := make([]byte, i+1-start)
				copy(obj, s.buf[start:i+1])
				s.buf = append(s.buf[:0], s.buf[i+1:]...)
				return obj
			}
		}
	}

	// 未完。開始位置より前は不要なので詰めておく
	if start > 0 {
		s.buf = append(s.buf[:0], s.buf[start:]...)
	}
	return nil
}
