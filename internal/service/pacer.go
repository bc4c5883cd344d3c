package service

import (
	"context"
	"time"
)

// ストリーミング速度の3段階設定。1文字あたりの表示間隔。
const (
	SpeedFast   = "fast"
	SpeedNormal = "normal"
	SpeedSlow   = "slow"
)

// CharDelay 速度設定に応じた1文字あたりの遅延。
func CharDelay(speed string) time.Duration {
	switch speed {
	case SpeedFast:
		return 20 * time.Millisecond
	case SpeedSlow:
		return 60 * time.Millisecond
	default:
		return 40 * time.Millisecond
	}
}

// Pacer 受信済みテキストをUIへ1文字ずつ一定間隔で公開する。
// ネットワークのチャンク粒度に関係なく表示の体感を揃えるのが目的。
// 表示済み文字数は受信済み文字数を決して超えない。
type Pacer struct {
	displayed []rune
	delay     time.Duration
	emit      func(string)
}

// NewPacer emit には累積表示テキストが渡される。
func NewPacer(delay time.Duration, emit func(string)) *Pacer {
	return &Pacer{
		delay: delay,
		emit:  emit,
	}
}

// Advance 新しい全文 full を受け取り、未表示の文字を1文字ずつ
// delay 間隔で公開する。full が表示済みより短いか同じ長さなら
// 何もしない（重複・順序逆転した更新への安全弁）。
// 各遅延点で ctx を確認し、キャンセルされたら ctx.Err() を返す。
func (p *Pacer) Advance(ctx context.Context, full string) error {
	runes := []rune(full)
	if len(runes) <= len(p.displayed) {
		return nil
	}

	for _, r := range runes[len(p.displayed):] {
		p.displayed = append(p.displayed, r)
		p.emit(string(p.displayed))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay):
		}
	}

	return nil
}

// Flush 上流の完了時に呼ぶ。タイミングの都合でまだ表示されていない
// 文字があれば、遅延なしで全文を一括公開する。
func (p *Pacer) Flush(full string) {
	runes := []rune(full)
	if len(runes) <= len(p.displayed) {
		return
	}

	p.displayed = runes
	p.emit(string(p.displayed))
}

// Displayed 現在表示済みのテキスト。
func (p *Pacer) Displayed() string {
	return string(p.displayed)
}
