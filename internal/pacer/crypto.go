package pacer

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/docketwatch/docketwatch/internal/config"
)

// Cipher encrypts token material at rest. The key is loaded once at process
// start, either inline from configuration or from a key file that is
// generated and persisted on first run.
type Cipher struct {
	key []byte
}

// NewCipher builds a cipher from the configured key source.
func NewCipher(cfg config.PACERConfig) (*Cipher, error) {
	if cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid PACER_ENCRYPTION_KEY: %w", err)
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
		}
		return &Cipher{key: key}, nil
	}

	key, err := loadOrCreateKeyFile(cfg.EncryptionKeyFile)
	if err != nil {
		return nil, err
	}

	return &Cipher{key: key}, nil
}

// NewCipherWithKey builds a cipher from raw key bytes. Used by tests.
func NewCipherWithKey(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Cipher{key: key}, nil
}

func loadOrCreateKeyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("corrupt key file %s: %w", path, err)
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("key file %s holds %d bytes, want %d", path, len(key), chacha20poly1305.KeySize)
		}
		return key, nil
	}

	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}

	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist key file %s: %w", path, err)
	}

	return key, nil
}

// Encrypt seals plaintext with a random nonce. Output is nonce || ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt. A wrong key or tampered payload
// returns an error rather than garbage.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}

	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}

// HashIdentity derives the one-way cache key for an identity. Raw identities
// never appear as store keys.
func HashIdentity(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}
