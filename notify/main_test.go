package notify

import (
	"testing"
	"time"
)

func TestMultiplexer(t *testing.T) {
	sender, m := NewMultiplexerSender[int]("test")
	a := make(chan int, 1)
	b := make(chan int, 1)
	m.Subscribe("a", a)
	m.Subscribe("b", b)
	if m.Len() != 2 {
		t.Fatalf("Len = %d", m.Len())
	}
	sender.SendWait(1)
	if got := <-a; got != 1 {
		t.Fatalf("a got %d", got)
	}
	if got := <-b; got != 1 {
		t.Fatalf("b got %d", got)
	}

	m.Unsubscribe(a)
	if m.Len() != 1 {
		t.Fatalf("Len after unsubscribe = %d", m.Len())
	}
	sender.Send(2)
	select {
	case got := <-b:
		if got != 2 {
			t.Fatalf("b got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("b got nothing")
	}
	select {
	case got := <-a:
		t.Fatalf("unsubscribed a got %d", got)
	default:
	}
}

func TestMultiplexerTimeout(t *testing.T) {
	sender, m := NewMultiplexerSender[int]("test")
	stuck := make(chan int)
	ok := make(chan int, 1)
	m.Subscribe("stuck", stuck)
	m.Subscribe("ok", ok)
	start := time.Now()
	sender.SendWait(3)
	if elapsed := time.Since(start); elapsed < multiplexerTimeout {
		t.Fatalf("returned after %s, before the timeout", elapsed)
	}
	if got := <-ok; got != 3 {
		t.Fatalf("ok got %d", got)
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	_, m := NewMultiplexerSender[int]("test")
	c := make(chan int)
	m.Subscribe("c", c)
	m.Unsubscribe(c)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	m.Unsubscribe(c)
}
