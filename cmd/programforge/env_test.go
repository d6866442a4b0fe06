package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# comment
PF_TEST_PLAIN=plain
export PF_TEST_EXPORTED="quoted value"
PF_TEST_PRESET=from-file
not a pair
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PF_TEST_PRESET", "from-env")
	t.Setenv("PF_TEST_PLAIN", "")
	os.Unsetenv("PF_TEST_PLAIN")
	t.Setenv("PF_TEST_EXPORTED", "")
	os.Unsetenv("PF_TEST_EXPORTED")

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}

	tests := map[string]string{
		"PF_TEST_PLAIN":    "plain",
		"PF_TEST_EXPORTED": "quoted value",
		"PF_TEST_PRESET":   "from-env",
	}
	for key, want := range tests {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
