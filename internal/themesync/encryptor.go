package themesync

import "io"

// Encryptor encrypts database snapshots before they leave the machine.
// Encryption uses the public key only. Decryption requires a passphrase
// to unlock the private key, producing a DecryptionContext for the session.
type Encryptor interface {
	// Setup generates a key pair, stores the public key in plaintext, and
	// encrypts the private key with the passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key with the passphrase. Returns an error
	// if the passphrase is wrong.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the
// duration of a restore.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
