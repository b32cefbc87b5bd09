package encryption

import (
	"bytes"
	"fmt"
	"io"

	"themesync/internal/themesync"
)

// testHeader marks snapshots written by the test encryptor.
var testHeader = []byte("TSSNAP\x00\x00")

// PlainEncryptor copies data through unchanged, optionally framed with a
// fixed header. With no header it backs the "none" encryption type; with
// testHeader it gives tests a deterministic, reversible transform whose
// output differs from its input.
type PlainEncryptor struct {
	header []byte
}

var _ themesync.Encryptor = (*PlainEncryptor)(nil)

// NewPlainEncryptor returns an encryptor that stores snapshots in the clear.
func NewPlainEncryptor() *PlainEncryptor {
	return &PlainEncryptor{}
}

// NewTestEncryptor returns an encryptor that frames data with testHeader.
func NewTestEncryptor() *PlainEncryptor {
	return &PlainEncryptor{header: testHeader}
}

// Setup is a no-op; there are no keys.
func (e *PlainEncryptor) Setup(passphrase string) error {
	return nil
}

func (e *PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(e.header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

// Unlock accepts any passphrase.
func (e *PlainEncryptor) Unlock(passphrase string) (themesync.DecryptionContext, error) {
	return &plainDecryptionContext{header: e.header}, nil
}

func (e *PlainEncryptor) IsConfigured() bool {
	return true
}

type plainDecryptionContext struct {
	header []byte
}

func (c *plainDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	if len(c.header) > 0 {
		got := make([]byte, len(c.header))
		if _, err := io.ReadFull(r, got); err != nil {
			return fmt.Errorf("reading header: %w", err)
		}
		if !bytes.Equal(got, c.header) {
			return fmt.Errorf("invalid snapshot header")
		}
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
