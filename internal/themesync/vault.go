package themesync

import (
	"context"
	"io"
)

// Snapshot metadata names stored in a vault.
const (
	MetadataDatabase   = "db"
	MetadataPublicKey  = "public_key"
	MetadataPrivateKey = "private_key"
)

// Vault stores off-site copies of the metadata database and the keys that
// encrypt it. Items are namespaced by instance ID. All operations stream
// through io.Reader/io.Writer.
type Vault interface {
	// PutMetadata stores a named item for an instance. size is the number
	// of bytes that will be read from r. version is stored alongside for
	// consistency checks; for the database it is the latest operation ID.
	PutMetadata(ctx context.Context, instanceID, name string, r io.Reader, size int64, version int64) error

	// GetMetadata writes a named item for an instance to w. A missing item
	// is ErrNotFound.
	GetMetadata(ctx context.Context, instanceID, name string, w io.Writer) error

	// GetMetadataVersion returns the stored version of a named item, or 0
	// if nothing has been stored.
	GetMetadataVersion(ctx context.Context, instanceID, name string) (int64, error)

	// ValidateSetup verifies that the vault is reachable and configured.
	ValidateSetup(ctx context.Context) error
}
