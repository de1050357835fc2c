package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/webbmaffian/go-ringchan/channel"
)

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Capacity != 10 {
		t.Errorf("capacity = %d, want 10", cfg.Capacity)
	}

	if d, _ := cfg.TimeoutDuration(); d != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", d)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ringchan.yaml")
	data := []byte("capacity: 64\ntimeout: 250ms\nnon_blocking: true\nbacking: mmap\nlog_level: debug\n")

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Capacity != 64 || !cfg.NonBlocking || cfg.Backing != "mmap" {
		t.Errorf("cfg = %+v", cfg)
	}

	if d, _ := cfg.TimeoutDuration(); d != 250*time.Millisecond {
		t.Errorf("timeout = %v", d)
	}

	if l, _ := cfg.Level(); l != slog.LevelDebug {
		t.Errorf("level = %v", l)
	}

	if len(cfg.HandleOptions()) != 1 {
		t.Errorf("non-blocking config produced %d handle options", len(cfg.HandleOptions()))
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("capacity: 32\n"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Capacity != 32 || cfg.Backing != "heap" || cfg.Timeout != "10s" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"capacity too small", "capacity: 1\n"},
		{"bad timeout", "timeout: soon\n"},
		{"negative timeout", "timeout: -1s\n"},
		{"bad backing", "backing: disk\n"},
		{"bad level", "log_level: loud\n"},
		{"not yaml", "capacity: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	_, err := Parse([]byte("capacity: 0\n"))
	if !errors.Is(err, channel.ErrInvalidCapacity) {
		t.Errorf("capacity 0 error = %v, want ErrInvalidCapacity", err)
	}
}

func TestNewChannel(t *testing.T) {
	cfg, err := Parse([]byte("capacity: 8\ntimeout: \"0\"\n"))
	if err != nil {
		t.Fatal(err)
	}

	ch, err := cfg.NewChannel(slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	if ch.Cap() != 8 {
		t.Errorf("cap = %d, want 8", ch.Cap())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
