package service

import "testing"

func TestDedupGuardMarkAndRoll(t *testing.T) {
	g := NewDedupGuard()
	if !g.Mark(1, "2024-01-01 09:00") {
		t.Fatal("first mark should be new")
	}
	if g.Mark(1, "2024-01-01 09:00") {
		t.Fatal("repeat mark should not be new")
	}
	if !g.Mark(2, "2024-01-01 09:00") {
		t.Fatal("other id should be new")
	}
	if g.Len() != 2 {
		t.Fatalf("Len = %d", g.Len())
	}

	if !g.Mark(1, "2024-01-01 09:01") {
		t.Fatal("new minute should start a fresh window")
	}
	if g.Len() != 1 || g.Window() != "2024-01-01 09:01" {
		t.Fatalf("window not rolled: len=%d window=%q", g.Len(), g.Window())
	}
}

func TestDedupGuardSettle(t *testing.T) {
	g := NewDedupGuard()
	key := "2024-01-01 09:00"
	g.Mark(5, key)
	if g.Settled(5, key) {
		t.Fatal("marked entry should not be settled yet")
	}
	g.Settle(5, key)
	if !g.Settled(5, key) {
		t.Fatal("Settle not recorded")
	}
	if g.Settled(5, "2024-01-01 09:01") {
		t.Fatal("settled state leaked into another minute")
	}
	g.Roll("2024-01-01 09:01")
	if g.Len() != 0 {
		t.Fatalf("Roll kept %d entries", g.Len())
	}
}
