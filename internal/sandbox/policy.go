// Package sandbox builds the filesystem access policy applied to spawned
// programs on platforms with a native mandatory access control facility.
//
// Only macOS qualifies: the policy is rendered as a Seatbelt profile and
// enforced by sandbox-exec. Elsewhere ForPlatform returns nil and programs
// run with environment isolation only.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Invoker is the platform sandbox wrapper used when a policy applies.
const Invoker = "sandbox-exec"

// ErrPolicyWrite is returned when the policy file cannot be persisted.
var ErrPolicyWrite = errors.New("writing sandbox policy")

// Action is the effect of a rule.
type Action string

const (
	Allow Action = "allow"
	Deny  Action = "deny"
)

// Kind is the class of filesystem operation a rule governs.
type Kind string

const (
	Read  Kind = "read"
	Write Kind = "write"
)

// Rule grants or denies one kind of access beneath Scope. When Literal is
// set, Scope matches that exact path only.
type Rule struct {
	Action  Action
	Kind    Kind
	Scope   string
	Literal bool
}

// Policy is an ordered rule list. Later rules take precedence over
// earlier ones, matching Seatbelt evaluation.
type Policy struct {
	Rules []Rule
}

// Scratch prefixes that stay writable under the default policy.
var writablePrefixes = []string{"/var", "/tmp", "/private"}

// Credential directories, relative to the real HOME, that stay unreadable.
var protectedDirs = []string{".ssh", ".aws", ".azure", filepath.Join(".config", "gcloud")}

// Options extends the default policy.
type Options struct {
	Writable  []string // extra write-allowed prefixes
	Protected []string // extra read-denied directories relative to the real HOME
}

// ForPlatform returns the policy for goos, or nil when the platform has no
// facility to enforce one.
func ForPlatform(goos, realHome string, opts Options) *Policy {
	if !Supported(goos) {
		return nil
	}
	return Default(realHome, opts)
}

// Supported reports whether goos can enforce a policy.
func Supported(goos string) bool {
	return goos == "darwin"
}

// Default builds the policy: every write is denied except beneath the
// scratch prefixes and /dev/null, and credential directories under
// realHome cannot be read. With an empty realHome no read rules are added.
func Default(realHome string, opts Options) *Policy {
	p := &Policy{}
	p.Rules = append(p.Rules, Rule{Action: Deny, Kind: Write, Scope: "/"})
	for _, prefix := range append(slices.Clone(writablePrefixes), opts.Writable...) {
		p.Rules = append(p.Rules, Rule{Action: Allow, Kind: Write, Scope: prefix})
	}
	p.Rules = append(p.Rules, Rule{Action: Allow, Kind: Write, Scope: "/dev/null", Literal: true})

	if realHome == "" {
		return p
	}
	for _, dir := range append(slices.Clone(protectedDirs), opts.Protected...) {
		p.Rules = append(p.Rules, Rule{Action: Deny, Kind: Read, Scope: filepath.Join(realHome, dir)})
	}
	return p
}

// Render returns the policy as a Seatbelt profile. Everything not covered
// by a rule is allowed.
func (p *Policy) Render() string {
	var b strings.Builder
	b.WriteString("(version 1)\n")
	b.WriteString("(allow default)\n")
	for _, r := range p.Rules {
		op := "file-read*"
		if r.Kind == Write {
			op = "file-write*"
		}
		if r.Scope == "/" && !r.Literal {
			fmt.Fprintf(&b, "(%s %s)\n", r.Action, op)
			continue
		}
		filter := "subpath"
		if r.Literal {
			filter = "literal"
		}
		fmt.Fprintf(&b, "(%s %s (%s %q))\n", r.Action, op, filter, r.Scope)
	}
	return b.String()
}

// File is a policy persisted to disk for the duration of one run.
type File struct {
	Path string
}

// Write persists the rendered policy to a uniquely named file in dir. The
// name combines the process id with a random suffix so concurrent runs
// never share a file. Failures wrap ErrPolicyWrite and leave no file behind.
func (p *Policy) Write(dir string) (*File, error) {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
	path := filepath.Join(dir, fmt.Sprintf("pkgx_sandbox_%d_%s.sb", os.Getpid(), suffix))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicyWrite, err)
	}
	if _, err := f.WriteString(p.Render()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: %w", ErrPolicyWrite, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: %w", ErrPolicyWrite, err)
	}
	return &File{Path: path}, nil
}

// Wrap returns argv prefixed with the sandbox invoker and this policy file.
func (f *File) Wrap(invoker string, argv []string) []string {
	out := make([]string, 0, len(argv)+3)
	out = append(out, invoker, "-f", f.Path)
	return append(out, argv...)
}

// Remove deletes the policy file. Errors are ignored.
func (f *File) Remove() {
	_ = os.Remove(f.Path)
}
