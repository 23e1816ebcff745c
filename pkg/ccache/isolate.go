package ccache

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// isolateAttempts bounds the retry loop on name collisions. With 48 random
// bits per name a collision means something is deliberately squatting paths.
const isolateAttempts = 10

// Isolate copies the source cache into a freshly created private cache file
// and returns the new cache name (with FILE: prefix). The new file is created
// with O_EXCL and owner-only permissions in the system temporary directory,
// so another process can neither predict nor reuse the path. The source is
// read once and left untouched.
//
// The returned name is meant to be exported as KRB5CCNAME for a supervised
// child process; renewal then targets the copy and the caller's original
// cache is never mutated or destroyed.
func Isolate(source *Cache) (string, error) {
	cc, err := source.Read()
	if err != nil {
		return "", err
	}
	if cc.DefaultPrincipal.IsZero() {
		return "", fmt.Errorf("cache %s has no principal", source.Path())
	}
	buf, err := cc.Marshal()
	if err != nil {
		return "", fmt.Errorf("copy cache %s: %w", source.Path(), err)
	}

	f, path, err := createPrivate()
	if err != nil {
		return "", err
	}
	// Re-assert owner-only permissions in case the umask widened them.
	if err := f.Chmod(0600); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("chmod ticket cache file %s: %w", path, err)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write ticket cache file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close ticket cache file %s: %w", path, err)
	}
	return "FILE:" + path, nil
}

// createPrivate creates a uniquely named cache file that did not previously
// exist, mode 0600.
func createPrivate() (*os.File, string, error) {
	var lastErr error
	for i := 0; i < isolateAttempts; i++ {
		name := fmt.Sprintf("krb5cc_%d_%s", os.Getuid(), randomSuffix())
		path := filepath.Join(os.TempDir(), name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			return f, path, nil
		}
		lastErr = err
		if !os.IsExist(err) {
			break
		}
	}
	return nil, "", fmt.Errorf("create ticket cache file: %w", lastErr)
}

func randomSuffix() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the system is unusable anyway.
		panic(fmt.Sprintf("ccache: read random bytes: %v", err))
	}
	return hex.EncodeToString(b[:])
}
