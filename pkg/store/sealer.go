package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/rendercast/rendercast-go/pkg/record"
)

// sealedPrefix marks a sealed value. Values without it are plaintext.
const sealedPrefix = "sealed:v1:"

// hkdfInfo binds derived keys to this use.
var hkdfInfo = []byte("rendercast device store credentials")

// Sealing errors.
var (
	ErrEmptySecret = errors.New("sealer secret is empty")
	ErrUnseal      = errors.New("cannot unseal credential")
)

// Sealer encrypts credentials at rest with XChaCha20-Poly1305 under a key
// derived from a passphrase with HKDF-SHA256.
type Sealer struct {
	key []byte
}

// NewSealer derives a sealing key from secret and salt.
func NewSealer(secret, salt []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext. The additional data (typically the service UUID)
// must be presented again to Open. Empty input stays empty.
func (s *Sealer) Seal(plaintext, additionalData string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), []byte(additionalData))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix
// are returned unchanged so stores written before sealing was enabled load.
func (s *Sealer) Open(value, additionalData string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnseal, err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("%w: short value", ErrUnseal)
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], []byte(additionalData))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnseal, err)
	}
	return string(plain), nil
}

// IsSealed reports whether value was produced by Seal.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

// sealRecord returns a copy of rec with client and pairing keys sealed.
// A nil sealer returns rec unchanged.
func (s *Sealer) sealRecord(rec record.DeviceRecord) (record.DeviceRecord, error) {
	return s.mapCredentials(rec, s.Seal)
}

// openRecord reverses sealRecord.
func (s *Sealer) openRecord(rec record.DeviceRecord) (record.DeviceRecord, error) {
	return s.mapCredentials(rec, s.Open)
}

func (s *Sealer) mapCredentials(rec record.DeviceRecord, fn func(v, ad string) (string, error)) (record.DeviceRecord, error) {
	if s == nil {
		return rec, nil
	}
	out := rec.Clone()
	for i := range out.Services {
		cfg := &out.Services[i].Config
		ad := out.Services[i].Description.UUID
		var err error
		if cfg.ClientKey, err = fn(cfg.ClientKey, ad); err != nil {
			return record.DeviceRecord{}, err
		}
		if cfg.PairingKey, err = fn(cfg.PairingKey, ad); err != nil {
			return record.DeviceRecord{}, err
		}
	}
	return out, nil
}
