package sysutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", " TRUE ", "yes", "Y", "on"} {
		if !IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "false", "off", "nope", "2"} {
		if IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) = true", v)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "a", "b"); got != "a" {
		t.Fatalf("got %q", got)
	}
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("empty list: %q", got)
	}
	if got := FirstNonEmpty(" ", "\t"); got != "" {
		t.Fatalf("all blank: %q", got)
	}
}

func TestLoadEnvFiles_PrecedenceAndMissing(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	base := filepath.Join(dir, ".env")
	if err := os.WriteFile(local, []byte("TUTOR_TEST_A=local\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(base, []byte("TUTOR_TEST_A=base\nTUTOR_TEST_B=base\nTUTOR_TEST_C=base\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TUTOR_TEST_C", "process")
	for _, k := range []string{"TUTOR_TEST_A", "TUTOR_TEST_B"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	loaded, err := LoadEnvFiles(filepath.Join(dir, "missing.env"), "", local, base)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 || loaded[0] != local || loaded[1] != base {
		t.Fatalf("loaded = %v", loaded)
	}
	if os.Getenv("TUTOR_TEST_A") != "local" || os.Getenv("TUTOR_TEST_B") != "base" || os.Getenv("TUTOR_TEST_C") != "process" {
		t.Fatalf("precedence: A=%q B=%q C=%q", os.Getenv("TUTOR_TEST_A"), os.Getenv("TUTOR_TEST_B"), os.Getenv("TUTOR_TEST_C"))
	}
}

func TestLoadEnvFiles_MalformedFile(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.env")
	if err := os.WriteFile(bad, []byte("TUTOR_TEST_Q=\"unterminated\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEnvFiles(bad); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestVersion_Precedence(t *testing.T) {
	prev := version
	t.Cleanup(func() { version = prev })

	version = ""
	t.Setenv("APP_VERSION", "v9.9.9")
	if got := Version(); got != "v9.9.9" {
		t.Fatalf("env version: %q", got)
	}
	version = "v1.2.3"
	if got := Version(); got != "v1.2.3" {
		t.Fatalf("stamped version: %q", got)
	}
	version = ""
	t.Setenv("APP_VERSION", "")
	if Version() == "" {
		t.Fatalf("version must never be empty")
	}
}
