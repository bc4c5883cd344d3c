package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEWriter ブラウザ向けのServer-Sent-Events書き出し。
// フレームは素の "data: <json>\n\n" のみで、event名は使わない。
type SSEWriter struct {
	w http.ResponseWriter
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w}
}

// WriteData vをJSONにして1フレーム送る。送るたびにフラッシュする。
func (s *SSEWriter) WriteData(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}

	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}

	return nil
}
