package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_MissingFileIsNoop(t *testing.T) {
	t.Parallel()
	if err := LoadFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadFile missing file error: %v", err)
	}
}

func TestLoadFile_LoadsValuesAndPreservesExisting(t *testing.T) {
	tempDir := t.TempDir()
	envPath := filepath.Join(tempDir, ".env")
	content := "" +
		"# comment\n" +
		"FROM_FILE=loaded\n" +
		"QUOTED=\"hello world\"\n" +
		"SINGLE='one word'\n" +
		"export EXPORTED=ok\n" +
		"EXISTING=from_file\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("EXISTING", "already_set")
	for _, key := range []string{"FROM_FILE", "QUOTED", "SINGLE", "EXPORTED"} {
		os.Unsetenv(key)
	}

	if err := LoadFile(envPath); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if got := os.Getenv("FROM_FILE"); got != "loaded" {
		t.Fatalf("FROM_FILE=%q, want %q", got, "loaded")
	}
	if got := os.Getenv("QUOTED"); got != "hello world" {
		t.Fatalf("QUOTED=%q, want %q", got, "hello world")
	}
	if got := os.Getenv("SINGLE"); got != "one word" {
		t.Fatalf("SINGLE=%q, want %q", got, "one word")
	}
	if got := os.Getenv("EXPORTED"); got != "ok" {
		t.Fatalf("EXPORTED=%q, want %q", got, "ok")
	}
	if got := os.Getenv("EXISTING"); got != "already_set" {
		t.Fatalf("EXISTING=%q, want existing value preserved", got)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in  string
		key string
		val string
		ok  bool
	}{
		{"A=1", "A", "1", true},
		{"export B=2", "B", "2", true},
		{`C="hi there"`, "C", "hi there", true},
		{"D='x'", "D", "x", true},
		{"SPACED =  trimmed ", "SPACED", "trimmed", true},
		{"E=", "E", "", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"no equals", "", "", false},
		{"=orphan", "", "", false},
	}
	for _, tc := range cases {
		key, val, ok := parseLine(tc.in)
		if key != tc.key || val != tc.val || ok != tc.ok {
			t.Errorf("parseLine(%q) = %q, %q, %v; want %q, %q, %v",
				tc.in, key, val, ok, tc.key, tc.val, tc.ok)
		}
	}
}
