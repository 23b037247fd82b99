package keyring

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/oauthcore/oauthcore/internal/obs"
)

const (
	masterService = "oauthcore"
	masterKey     = "token-master-key"
	masterKeyLen  = 32
)

var (
	defaultOnce     sync.Once
	defaultProvider Provider
)

// Default returns the process-wide Provider: the OS keyring if reachable,
// otherwise the in-memory fallback (logged once as degraded persistence).
func Default() Provider {
	defaultOnce.Do(func() {
		z := NewZalandoProvider()
		if z.IsAvailable() {
			defaultProvider = z
			return
		}
		obs.Warnf("oauthcore: no OS credential store reachable; falling back to " +
			"in-memory token master key, persisted tokens will not survive a restart")
		defaultProvider = NewMemoryProvider()
	})
	return defaultProvider
}

// MasterSecret returns the 32-byte master secret used to derive the at-rest
// encryption key, generating and persisting one via provider on first use.
func MasterSecret(provider Provider) ([]byte, error) {
	if existing, err := provider.Get(masterService, masterKey); err == nil {
		b, decErr := base64.StdEncoding.DecodeString(existing)
		if decErr == nil && len(b) == masterKeyLen {
			return b, nil
		}
		obs.Warnf("oauthcore: stored master key was malformed, regenerating")
	}

	fresh := make([]byte, masterKeyLen)
	if _, err := rand.Read(fresh); err != nil {
		return nil, fmt.Errorf("oauthcore: generating master key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(fresh)
	if err := provider.Set(masterService, masterKey, encoded); err != nil {
		return nil, fmt.Errorf("oauthcore: persisting master key via %s: %w", provider.Name(), err)
	}
	return fresh, nil
}
