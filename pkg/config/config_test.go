package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxwire.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "voxwire" {
		t.Errorf("service name = %q", cfg.ServiceName)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Answer.Mode != "mock" {
		t.Errorf("answer mode = %q", cfg.Answer.Mode)
	}
	if cfg.Voice.CommaFallbackLen != 60 {
		t.Errorf("comma fallback = %d", cfg.Voice.CommaFallbackLen)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
answer:
  mode: gemini
  model: gemini-2.0-pro
chat:
  room_id: studio
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Answer.Mode != "gemini" || cfg.Answer.Model != "gemini-2.0-pro" {
		t.Errorf("answer = %+v", cfg.Answer)
	}
	if cfg.Chat.RoomID != "studio" {
		t.Errorf("room = %q", cfg.Chat.RoomID)
	}
	// untouched sections keep their defaults
	if cfg.Speech.SampleRate != 22050 {
		t.Errorf("sample rate = %d", cfg.Speech.SampleRate)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9999\n")
	t.Setenv("VOXWIRE_SERVER_PORT", "7777")
	t.Setenv("VOXWIRE_CHAT_USER_NAME", "env-user")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, want env override", cfg.Server.Port)
	}
	if cfg.Chat.UserName != "env-user" {
		t.Errorf("user name = %q", cfg.Chat.UserName)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 0\n"},
		{"bad answer mode", "answer:\n  mode: quantum\n"},
		{"gemini without model", "answer:\n  mode: gemini\n  model: \"\"\n"},
		{"bad player mode", "player:\n  mode: tape\n"},
		{"exec player without command", "player:\n  mode: exec\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"zero fallback", "voice:\n  comma_fallback_len: 0\n"},
		{"empty room", "chat:\n  room_id: \"\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("Load accepted %s", tc.name)
			}
		})
	}
}
