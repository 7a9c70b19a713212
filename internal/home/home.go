// Package home manages the isolated HOME directory handed to spawned
// programs.
//
// A single directory is shared by every run for the lifetime of the
// process, so tools such as npx can keep caches between invocations even
// though the sandbox forbids writes elsewhere. Concurrent runs of tools
// that write the same cache files may race; nothing here serialises them.
package home

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"sync"
)

// Environment variables rewritten for spawned programs.
const (
	VarHome    = "HOME"
	VarOldHome = "OLD_HOME" // carries the caller's real HOME
)

// Real returns the caller's own home directory: $HOME, or the account
// database entry when HOME is unset. It returns "" when neither is known.
func Real() string {
	if h := os.Getenv(VarHome); h != "" {
		return h
	}
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	return ""
}

// Home is a lazily created scratch directory. The zero value is not usable;
// construct with New.
type Home struct {
	path string

	mu    sync.Mutex
	ready bool
}

// New returns a Home rooted at path. Nothing is created until Dir is first
// called.
func New(path string) *Home {
	return &Home{path: path}
}

// Path returns the directory path without creating it.
func (h *Home) Path() string {
	return h.path
}

// Dir returns the directory path, creating it on first use. A failed
// creation is retried on the next call.
func (h *Home) Dir() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready {
		return h.path, nil
	}
	if err := os.MkdirAll(h.path, 0o755); err != nil {
		return "", fmt.Errorf("creating isolated home: %w", err)
	}
	h.ready = true
	return h.path, nil
}

// Env returns base with HOME pointed at the isolated directory and the
// original HOME, if base had one, exposed as OLD_HOME. Existing OLD_HOME
// entries in base are replaced.
func (h *Home) Env(base []string) []string {
	env := make([]string, 0, len(base)+2)
	var realHome string
	var hadHome bool
	for _, kv := range base {
		name, value, _ := strings.Cut(kv, "=")
		switch name {
		case VarHome:
			realHome, hadHome = value, true
			continue
		case VarOldHome:
			continue
		}
		env = append(env, kv)
	}

	env = append(env, VarHome+"="+h.path)
	if hadHome {
		env = append(env, VarOldHome+"="+realHome)
	}
	return env
}
