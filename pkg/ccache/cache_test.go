package ccache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestCache writes a one-credential cache to a fresh file and returns
// the resolved handle.
func writeTestCache(t *testing.T) *Cache {
	t.Helper()
	data, err := testCache(t).Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "krb5cc_test")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write cache file: %v", err)
	}
	c, err := Resolve(path)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return c
}

// ============================================================================
// Resolve / DefaultName
// ============================================================================

func TestResolve_BarePath(t *testing.T) {
	c, err := Resolve("/tmp/krb5cc_1000")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if c.Path() != "/tmp/krb5cc_1000" {
		t.Errorf("path = %q", c.Path())
	}
}

func TestResolve_FilePrefix(t *testing.T) {
	c, err := Resolve("FILE:/tmp/krb5cc_1000")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if c.Path() != "/tmp/krb5cc_1000" {
		t.Errorf("path = %q", c.Path())
	}
	if c.Name() != "FILE:/tmp/krb5cc_1000" {
		t.Errorf("name = %q", c.Name())
	}
}

func TestResolve_UnsupportedType(t *testing.T) {
	if _, err := Resolve("KEYRING:persistent:1000"); err == nil {
		t.Fatal("expected error for KEYRING cache")
	}
}

func TestResolve_Empty(t *testing.T) {
	if _, err := Resolve(""); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := Resolve("FILE:"); err == nil {
		t.Fatal("expected error for empty FILE path")
	}
}

func TestDefaultName_Env(t *testing.T) {
	t.Setenv("KRB5CCNAME", "FILE:/run/user/1000/krb5cc")
	if got := DefaultName(); got != "FILE:/run/user/1000/krb5cc" {
		t.Errorf("DefaultName = %q", got)
	}
}

func TestDefaultName_Fallback(t *testing.T) {
	t.Setenv("KRB5CCNAME", "")
	want := fmt.Sprintf("FILE:/tmp/krb5cc_%d", os.Getuid())
	if got := DefaultName(); got != want {
		t.Errorf("DefaultName = %q, want %q", got, want)
	}
}

// ============================================================================
// Read / Principal
// ============================================================================

func TestCache_Principal(t *testing.T) {
	c := writeTestCache(t)
	p, err := c.Principal()
	if err != nil {
		t.Fatalf("Principal failed: %v", err)
	}
	if p.String() != "alice@EXAMPLE.ORG" {
		t.Errorf("principal = %s", p)
	}
}

func TestCache_Read_Missing(t *testing.T) {
	c, err := Resolve(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := c.Read(); err == nil {
		t.Fatal("expected error reading missing cache")
	}
}

// ============================================================================
// Reinitialize / Store
// ============================================================================

func TestCache_ReinitializeClearsCredentials(t *testing.T) {
	c := writeTestCache(t)
	if err := c.Reinitialize(testPrincipal()); err != nil {
		t.Fatalf("Reinitialize failed: %v", err)
	}
	cc, err := c.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(cc.Credentials) != 0 {
		t.Errorf("expected empty cache after reinitialize, got %d credentials", len(cc.Credentials))
	}
	if !cc.DefaultPrincipal.Equal(testPrincipal()) {
		t.Errorf("principal = %s", cc.DefaultPrincipal)
	}
}

func TestCache_StoreAfterReinitialize(t *testing.T) {
	c := writeTestCache(t)
	client := testPrincipal()
	issued := time.Now().Truncate(time.Second)

	// Two renewal cycles: the cache must hold exactly one credential for
	// exactly one principal after each.
	for i := 0; i < 2; i++ {
		if err := c.Reinitialize(client); err != nil {
			t.Fatalf("Reinitialize %d failed: %v", i, err)
		}
		if err := c.Store(testTGT(client, issued.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Store %d failed: %v", i, err)
		}
		cc, err := c.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if len(cc.Credentials) != 1 {
			t.Fatalf("cycle %d: expected 1 credential, got %d", i, len(cc.Credentials))
		}
		if !cc.Credentials[0].Client.Equal(client) {
			t.Errorf("cycle %d: credential client = %s", i, cc.Credentials[0].Client)
		}
	}
}

func TestCache_Reinitialize_EmptyPrincipal(t *testing.T) {
	c := writeTestCache(t)
	if err := c.Reinitialize(Principal{}); err == nil {
		t.Fatal("expected error for empty principal")
	}
}

func TestCache_Store_Uninitialized(t *testing.T) {
	c, err := Resolve(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := c.Store(testTGT(testPrincipal(), time.Now())); err == nil {
		t.Fatal("expected error storing into missing cache")
	}
}

// ============================================================================
// Destroy
// ============================================================================

func TestCache_Destroy(t *testing.T) {
	c := writeTestCache(t)
	if err := c.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := os.Stat(c.Path()); !os.IsNotExist(err) {
		t.Error("cache file still exists after Destroy")
	}
	// A second destroy is not an error.
	if err := c.Destroy(); err != nil {
		t.Errorf("second Destroy failed: %v", err)
	}
}
