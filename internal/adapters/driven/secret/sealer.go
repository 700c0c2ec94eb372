// Package secret seals small values, such as refresh tokens, before they are
// written to disk.
package secret

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
)

// Key derivation parameters.
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32

	saltSize  = 16
	nonceSize = 24
)

// SaltKey is the key-value entry holding the installation's salt.
const SaltKey = "secret.salt"

// ErrOpen indicates sealed data could not be decrypted, usually because the
// passphrase changed.
var ErrOpen = errors.New("secret: cannot open sealed data")

// Sealer encrypts with NaCl secretbox under a key derived by argon2id.
type Sealer struct {
	key [argon2KeyLen]byte
}

// NewSealer derives a sealing key from passphrase and salt.
func NewSealer(passphrase string, salt []byte) (*Sealer, error) {
	if len(salt) < saltSize {
		return nil, fmt.Errorf("secret: salt must be at least %d bytes", saltSize)
	}
	derived := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	s := &Sealer{}
	copy(s.key[:], derived)
	return s, nil
}

// Seal encrypts plaintext. Output is nonce || ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("secret: generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open decrypts data produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrOpen
	}
	return plaintext, nil
}

// LoadOrCreateSalt returns the salt stored in kv, generating and storing one
// on first use.
func LoadOrCreateSalt(ctx context.Context, kv driven.KeyValueStore) ([]byte, error) {
	encoded, ok, err := kv.Get(ctx, SaltKey)
	if err != nil {
		return nil, fmt.Errorf("secret: read salt: %w", err)
	}
	if ok {
		salt, err := base64.StdEncoding.DecodeString(encoded)
		if err == nil && len(salt) >= saltSize {
			return salt, nil
		}
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("secret: generate salt: %w", err)
	}
	if err := kv.Put(ctx, SaltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, fmt.Errorf("secret: store salt: %w", err)
	}
	return salt, nil
}

// InstallationPassphrase is the passphrase used when none is configured. It
// ties sealed data to this user on this machine.
func InstallationPassphrase() string {
	host, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	return "o365connect:" + host + ":" + home
}
