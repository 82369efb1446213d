// Package bus carries user-facing notices (the dashboard's success and
// error banners) from the orchestration flows to whatever surface is
// displaying them.
package bus

import "time"

const (
	LevelSuccess = "success"
	LevelError   = "error"
)

type Notice struct {
	Level string    `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// NoticeBus is a buffered fan-in of notices with a single consumer.
// Publish never blocks: when nobody is draining the bus (headless CLI
// runs), notices are dropped rather than stalling a flow.
type NoticeBus struct {
	ch chan Notice
}

func NewNoticeBus(bufSize int) *NoticeBus {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &NoticeBus{ch: make(chan Notice, bufSize)}
}

func (b *NoticeBus) Publish(level, text string) {
	select {
	case b.ch <- Notice{Level: level, Text: text, At: time.Now()}:
	default:
	}
}

func (b *NoticeBus) Success(text string) { b.Publish(LevelSuccess, text) }
func (b *NoticeBus) Error(text string)   { b.Publish(LevelError, text) }

// Notices exposes the consumer side.
func (b *NoticeBus) Notices() <-chan Notice {
	return b.ch
}
