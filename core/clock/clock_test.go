package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	start := time.Date(2025, 1, 6, 17, 0, 0, 0, time.UTC)
	c := NewFixed(start)
	if !c.Now().Equal(start) {
		t.Fatalf("expected %v got %v", start, c.Now())
	}
	c.Advance(90 * time.Minute)
	if want := start.Add(90 * time.Minute); !c.Now().Equal(want) {
		t.Fatalf("expected %v got %v", want, c.Now())
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Fatalf("set not applied")
	}
}

func TestSystem(t *testing.T) {
	before := time.Now()
	now := System{}.Now()
	if now.Before(before) {
		t.Fatalf("system clock went backwards")
	}
}
