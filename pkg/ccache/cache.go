package ccache

import (
	"fmt"
	"os"
	"strings"
)

// Cache is a handle to a file credential cache. The handle itself holds no
// open file descriptor; every operation opens the file, does its work, and
// closes it again, so a handle can outlive a daemonization boundary safely.
type Cache struct {
	name string
	path string
}

// Resolve returns a handle for a cache name. Names may carry the "FILE:"
// prefix used by KRB5CCNAME; other cache types (DIR, KEYRING, KCM) are not
// supported.
func Resolve(name string) (*Cache, error) {
	path := name
	if i := strings.Index(name, ":"); i >= 0 {
		ctype := name[:i]
		if ctype != "FILE" {
			return nil, fmt.Errorf("unsupported cache type %q (only FILE caches are supported)", ctype)
		}
		path = name[i+1:]
	}
	if path == "" {
		return nil, fmt.Errorf("empty cache name")
	}
	return &Cache{name: name, path: path}, nil
}

// DefaultName returns the cache name from KRB5CCNAME, falling back to the
// conventional per-user path.
func DefaultName() string {
	if env := os.Getenv("KRB5CCNAME"); env != "" {
		return env
	}
	return fmt.Sprintf("FILE:/tmp/krb5cc_%d", os.Getuid())
}

// Name returns the cache name as given to Resolve.
func (c *Cache) Name() string {
	return c.name
}

// Path returns the filesystem path of the cache file.
func (c *Cache) Path() string {
	return c.path
}

// Read loads and parses the cache file.
func (c *Cache) Read() (*CCache, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", c.path, err)
	}
	cc, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", c.path, err)
	}
	return cc, nil
}

// Principal returns the default principal stored in the cache.
func (c *Cache) Principal() (Principal, error) {
	cc, err := c.Read()
	if err != nil {
		return Principal{}, err
	}
	if cc.DefaultPrincipal.IsZero() {
		return Principal{}, fmt.Errorf("cache %s has no principal", c.path)
	}
	return cc.DefaultPrincipal, nil
}

// Reinitialize truncates the cache down to the file header and the given
// principal, discarding all stored credentials. Between Reinitialize and the
// following Store the cache holds no credential; readers racing with a
// renewal can observe that empty state.
func (c *Cache) Reinitialize(p Principal) error {
	if p.IsZero() {
		return fmt.Errorf("refusing to initialize cache %s for empty principal", c.path)
	}
	buf := appendFileHeader(nil, p)
	if err := os.WriteFile(c.path, buf, 0600); err != nil {
		return fmt.Errorf("initialize cache %s: %w", c.path, err)
	}
	return nil
}

// Store appends one credential record to the cache. The cache must already
// be initialized.
func (c *Cache) Store(cred *Credential) error {
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open cache %s: %w", c.path, err)
	}
	_, werr := f.Write(appendCredential(nil, cred))
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("store credential in %s: %w", c.path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("close cache %s: %w", c.path, cerr)
	}
	return nil
}

// Destroy unlinks the cache file. Missing files are not an error; a destroy
// on exit may race with an external kdestroy.
func (c *Cache) Destroy() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("destroy cache %s: %w", c.path, err)
	}
	return nil
}
