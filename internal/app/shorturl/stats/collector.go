// Package stats 异步收集点击明细（谁在什么时候从哪里点了哪个码）。
//
// 明细只进 click_events 表，和点击总数是两条独立的通路：
// 总数走 clicks 包的增量缓冲，这里丢几条明细不影响计数。
package stats

import (
	"sync/atomic"
	"time"
)

// ClickEvent 是一次跳转的上下文快照。
type ClickEvent struct {
	Code      string
	ClickedAt time.Time
	IP        string
	UserAgent string // 浏览器、操作系统
	Referer   string // 从哪个页面点过来
}

// Collector 是收集端的抽象，单机用 channel，多实例换 Kafka。
type Collector interface {
	Collect(event ClickEvent)
	Close()
}

// ChannelCollector 用带缓冲的 channel 收集事件。
// Collect 永不阻塞：通道满了直接丢，明细是尽力而为的。
type ChannelCollector struct {
	ch     chan ClickEvent
	closed atomic.Bool
}

func NewChannelCollector(bufferSize int) *ChannelCollector {
	return &ChannelCollector{
		ch: make(chan ClickEvent, bufferSize),
	}
}

func (c *ChannelCollector) Collect(event ClickEvent) {
	if c.closed.Load() {
		return
	}
	select {
	case c.ch <- event:
	default:
		// 通道满，丢弃
	}
}

func (c *ChannelCollector) Events() <-chan ClickEvent {
	return c.ch
}

func (c *ChannelCollector) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.ch)
	}
}
