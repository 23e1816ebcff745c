package ccache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsolate(t *testing.T) {
	// Isolate writes into os.TempDir; point it at the test dir so the
	// created file is cleaned up with the test.
	t.Setenv("TMPDIR", t.TempDir())

	source := writeTestCache(t)
	before, err := os.ReadFile(source.Path())
	if err != nil {
		t.Fatalf("read source: %v", err)
	}

	name, err := Isolate(source)
	if err != nil {
		t.Fatalf("Isolate failed: %v", err)
	}
	if !strings.HasPrefix(name, "FILE:") {
		t.Errorf("isolated cache name %q has no FILE: prefix", name)
	}

	dup, err := Resolve(name)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if dup.Path() == source.Path() {
		t.Fatal("isolated cache path equals source path")
	}

	// Owner-only permissions.
	info, err := os.Stat(dup.Path())
	if err != nil {
		t.Fatalf("stat isolated cache: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("isolated cache permissions = %o, want 0600", perm)
	}

	// Same principal, same credential set.
	cc, err := dup.Read()
	if err != nil {
		t.Fatalf("read isolated cache: %v", err)
	}
	if cc.DefaultPrincipal.String() != "alice@EXAMPLE.ORG" {
		t.Errorf("isolated principal = %s", cc.DefaultPrincipal)
	}
	if len(cc.Credentials) != 1 {
		t.Errorf("isolated cache has %d credentials, want 1", len(cc.Credentials))
	}

	// Source is untouched.
	after, err := os.ReadFile(source.Path())
	if err != nil {
		t.Fatalf("reread source: %v", err)
	}
	if string(before) != string(after) {
		t.Error("source cache was modified by Isolate")
	}
}

func TestIsolate_DistinctNames(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	source := writeTestCache(t)
	a, err := Isolate(source)
	if err != nil {
		t.Fatalf("first Isolate failed: %v", err)
	}
	b, err := Isolate(source)
	if err != nil {
		t.Fatalf("second Isolate failed: %v", err)
	}
	if a == b {
		t.Errorf("two isolations produced the same name %q", a)
	}
}

func TestIsolate_SourceMissing(t *testing.T) {
	c, err := Resolve(filepath.Join(t.TempDir(), "gone"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := Isolate(c); err == nil {
		t.Fatal("expected error isolating a missing cache")
	}
}

func TestIsolate_EmptySource(t *testing.T) {
	// A cache file with a header but no principal must be rejected.
	path := filepath.Join(t.TempDir(), "empty")
	buf := appendFileHeader(nil, Principal{NameType: 1})
	if err := os.WriteFile(path, buf, 0600); err != nil {
		t.Fatalf("write degenerate cache: %v", err)
	}
	c, err := Resolve(path)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := Isolate(c); err == nil {
		t.Fatal("expected error isolating a cache without a principal")
	}
}
