package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		l, err := New(mode, "info")
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		if l.SugaredLogger == nil {
			t.Fatalf("New(%q): nil sugared logger", mode)
		}
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("dev", "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("user_id", "u1").Warn("stats write failed", "qid", "q::p::r1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["user_id"] != "u1" || ctx["qid"] != "q::p::r1" {
		t.Errorf("fields = %v", ctx)
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error("ignored", "k", "v")
	l.Sync()
}
