package cli

import (
	"testing"

	"quizbot-engine/internal/config"
)

func TestListenPort(t *testing.T) {
	var cfg config.Config
	if got := listenPort("", cfg); got != "8080" {
		t.Fatalf("expected default 8080, got %q", got)
	}

	cfg.Server.Port = "9090"
	if got := listenPort("", cfg); got != "9090" {
		t.Fatalf("expected configured port, got %q", got)
	}
	if got := listenPort("7000", cfg); got != "7000" {
		t.Fatalf("expected flag to win, got %q", got)
	}
}

func TestPortFlagDefaultsEmpty(t *testing.T) {
	t.Setenv("PORT", "6060")
	cmd := newRootCmd()
	f := cmd.PersistentFlags().Lookup("port")
	if f == nil {
		t.Fatalf("expected port flag")
	}
	if f.DefValue != "" {
		t.Fatalf("expected empty default so config can apply, got %q", f.DefValue)
	}
}
