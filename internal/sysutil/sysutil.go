// Package sysutil holds process-level helpers for the server binary: dotenv
// loading, boolean switches and the reported build version.
package sysutil

import (
	"errors"
	"io/fs"
	"os"
	"runtime/debug"
	"strings"

	"github.com/joho/godotenv"
)

// version is stamped at build time:
//
//	go build -ldflags "-X github.com/tbourn/go-tutor-backend/internal/sysutil.version=v1.4.0"
var version string

// LoadEnvFiles loads every existing file of paths into the process
// environment. Variables already set win over file values, and earlier files
// win over later ones. Missing files are skipped; it returns the ones loaded.
func LoadEnvFiles(paths ...string) ([]string, error) {
	var loaded []string
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, err
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// IsTruthy reports whether v reads as an enabled switch.
// Accepted values (case-insensitive): "1", "true", "yes", "y", "on".
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first value that is not blank, or "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Version reports the build version: the ldflags stamp, then APP_VERSION,
// then the module version recorded by the toolchain, then "dev".
func Version() string {
	var mod string
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "(devel)" {
		mod = bi.Main.Version
	}
	return FirstNonEmpty(version, os.Getenv("APP_VERSION"), mod, "dev")
}
