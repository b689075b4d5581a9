package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// baseServiceName is the default keyring service under which credentials are
// filed. It can be namespaced via environment for tests and dev builds.
const baseServiceName = "buddyline"

// serviceName resolves the effective keyring service name.
// Precedence:
//  1. BUDDYLINE_KEYRING_SERVICE (full override)
//  2. BUDDYLINE_KEYRING_NAMESPACE (suffix appended to base)
//  3. baseServiceName
func serviceName() string {
	if v := strings.TrimSpace(os.Getenv("BUDDYLINE_KEYRING_SERVICE")); v != "" {
		return v
	}
	if ns := strings.TrimSpace(os.Getenv("BUDDYLINE_KEYRING_NAMESPACE")); ns != "" {
		return baseServiceName + "-" + ns
	}
	return baseServiceName
}

// Keyring is a Store backed by the operating system credential manager
// (Keychain, Secret Service, Windows Credential Manager). The keyring API has
// no enumeration, so Clear relies on a tracked key set maintained across Set
// and Delete within this process plus the well-known credential keys.
type Keyring struct {
	service string

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewKeyring returns a keyring-backed store under the resolved service name.
func NewKeyring() *Keyring {
	return &Keyring{service: serviceName(), seen: make(map[string]struct{})}
}

// ServiceName reports the effective keyring service, for diagnostics only.
func (k *Keyring) ServiceName() string { return k.service }

// Get implements Store.
func (k *Keyring) Get(_ context.Context, key string) (string, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return v, nil
}

// Set implements Store.
func (k *Keyring) Set(_ context.Context, key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	k.mu.Lock()
	k.seen[key] = struct{}{}
	k.mu.Unlock()
	return nil
}

// Delete implements Store. Deleting an absent key is a no-op.
func (k *Keyring) Delete(_ context.Context, key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	k.mu.Lock()
	delete(k.seen, key)
	k.mu.Unlock()
	return nil
}

// Clear implements Store. It removes every key written through this instance.
func (k *Keyring) Clear(ctx context.Context) error {
	k.mu.Lock()
	keys := make([]string, 0, len(k.seen))
	for key := range k.seen {
		keys = append(keys, key)
	}
	k.mu.Unlock()

	var firstErr error
	for _, key := range keys {
		if err := k.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
