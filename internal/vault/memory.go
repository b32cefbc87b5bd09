package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"themesync/internal/themesync"
)

// MemoryVault is an in-memory implementation of the Vault interface,
// useful for testing. It is safe for concurrent use.
type MemoryVault struct {
	name     string
	items    map[string][]byte // "instanceID/name" -> item
	versions map[string]int64  // "instanceID/name" -> version
	mu       sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		items:    make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

// itemKey returns the map key for an instance/name pair.
func itemKey(instanceID, name string) string {
	return instanceID + "/" + name
}

// PutMetadata stores a named item for an instance, replacing any previous copy.
func (m *MemoryVault) PutMetadata(ctx context.Context, instanceID, name string, r io.Reader, size int64, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := itemKey(instanceID, name)
	m.items[key] = data
	m.versions[key] = version
	return nil
}

// GetMetadataVersion returns 0 if nothing has been stored for this instance/name.
func (m *MemoryVault) GetMetadataVersion(ctx context.Context, instanceID, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[itemKey(instanceID, name)], nil
}

// GetMetadata writes a named item for an instance to w.
func (m *MemoryVault) GetMetadata(ctx context.Context, instanceID, name string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	data, ok := m.items[itemKey(instanceID, name)]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s for instance %s", themesync.ErrNotFound, name, instanceID)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// ValidateSetup always succeeds for the in-memory vault.
func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return nil
}

// Compile-time check that MemoryVault implements themesync.Vault
var _ themesync.Vault = (*MemoryVault)(nil)
