package stats

import (
	"testing"
	"time"
)

func TestChannelCollectorDeliversEvents(t *testing.T) {
	c := NewChannelCollector(8)
	defer c.Close()

	now := time.Now()
	for i := 0; i < 3; i++ {
		c.Collect(ClickEvent{Code: "abc", ClickedAt: now, IP: "127.0.0.1"})
	}

	for i := 0; i < 3; i++ {
		select {
		case e := <-c.Events():
			if e.Code != "abc" {
				t.Fatalf("event code: got %q, want %q", e.Code, "abc")
			}
		default:
			t.Fatalf("event %d missing from channel", i)
		}
	}
}

func TestChannelCollectorDropsWhenFull(t *testing.T) {
	c := NewChannelCollector(2)
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Collect(ClickEvent{Code: "abc"}) // 不允许阻塞跳转路径
	}

	if got := len(c.ch); got != 2 {
		t.Fatalf("buffered events: got %d, want 2 (rest dropped)", got)
	}
}

func TestChannelCollectorClose(t *testing.T) {
	c := NewChannelCollector(2)
	c.Close()
	c.Close() // 重复关闭不 panic

	c.Collect(ClickEvent{Code: "abc"}) // 关闭后丢弃

	if _, ok := <-c.Events(); ok {
		t.Fatal("channel still open after Close")
	}
}
