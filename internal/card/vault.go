package card

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Vault seals full card numbers before they reach the store. Ciphertext is
// nonce-prefixed; the fingerprint is a SHA-256 over the PAN used only for
// collision checks, never for recovery.
type Vault struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

func NewVault(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("NewVault: decode key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("NewVault: %w", err)
	}
	return &Vault{aead: aead}, nil
}

func (v *Vault) Seal(pan string) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("Seal: nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, []byte(pan), nil), nil
}

func (v *Vault) Open(ciphertext []byte) (string, error) {
	if len(ciphertext) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("Open: ciphertext too short")
	}
	nonce, sealed := ciphertext[:chacha20poly1305.NonceSizeX], ciphertext[chacha20poly1305.NonceSizeX:]
	pan, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("Open: %w", err)
	}
	return string(pan), nil
}

// Fingerprint identifies a PAN without storing it in the clear.
func Fingerprint(pan string) string {
	sum := sha256.Sum256([]byte(pan))
	return hex.EncodeToString(sum[:])
}
