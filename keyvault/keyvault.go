// Package keyvault loads the treasury signing key from an encrypted blob so
// the raw private key never sits on disk or in the environment in plaintext.
//
// The blob is a JSON document produced by cmd/keytool: the base58-encoded key
// is sealed with AES-256-GCM under a key derived from an operator passphrase
// via scrypt, with an optional HMAC-SHA256 over the ciphertext.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/scrypt"
)

const (
	scryptN = 1 << 17
	// Blobs without an hmac field predate the hardened cost and were sealed
	// at the Node scrypt default.
	scryptNLegacy = 16384
	scryptR       = 8
	scryptP       = 1
	derivedLen   = 32
	saltLen      = 32
	gcmNonceLen  = 12
	sealedKeyLen = 64
)

var (
	ErrDecryptionFailed = errors.New("keyvault: decryption failed")
	ErrIntegrity        = errors.New("keyvault: integrity check failed")
)

// Blob is the on-disk encrypted key format. All fields are hex encoded.
type Blob struct {
	Salt    string `json:"salt"`
	IV      string `json:"iv"`
	Tag     string `json:"tag"`
	Content string `json:"content"`
	HMAC    string `json:"hmac,omitempty"`
}

// LoadFile reads an encrypted key blob from path and decrypts it.
func LoadFile(path, passphrase string) (solana.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyvault: read %s: %w", path, err)
	}
	return Decrypt(raw, passphrase)
}

// Decrypt unseals a JSON key blob with the given passphrase and returns the
// 64-byte ed25519 private key it protects.
func Decrypt(raw []byte, passphrase string) (solana.PrivateKey, error) {
	var blob Blob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, fmt.Errorf("keyvault: parse blob: %w", err)
	}

	salt, err := hex.DecodeString(blob.Salt)
	if err != nil {
		return nil, fmt.Errorf("keyvault: decode salt: %w", err)
	}
	nonce, err := hex.DecodeString(blob.IV)
	if err != nil {
		return nil, fmt.Errorf("keyvault: decode iv: %w", err)
	}
	tag, err := hex.DecodeString(blob.Tag)
	if err != nil {
		return nil, fmt.Errorf("keyvault: decode tag: %w", err)
	}
	content, err := hex.DecodeString(blob.Content)
	if err != nil {
		return nil, fmt.Errorf("keyvault: decode content: %w", err)
	}

	cost := scryptN
	if blob.HMAC == "" {
		cost = scryptNLegacy
	}
	derived, err := scrypt.Key([]byte(passphrase), salt, cost, scryptR, scryptP, derivedLen)
	if err != nil {
		return nil, fmt.Errorf("keyvault: derive key: %w", err)
	}

	if blob.HMAC != "" {
		want, err := hex.DecodeString(blob.HMAC)
		if err != nil {
			return nil, fmt.Errorf("keyvault: decode hmac: %w", err)
		}
		// The HMAC covers the ciphertext content only; the tag is already
		// authenticated by GCM itself.
		mac := hmac.New(sha256.New, derived)
		mac.Write(content)
		if !hmac.Equal(mac.Sum(nil), want) {
			return nil, ErrIntegrity
		}
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("keyvault: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyvault: init gcm: %w", err)
	}

	// GCM expects the auth tag appended to the ciphertext.
	plaintext, err := gcm.Open(nil, nonce, append(content, tag...), nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	keyBytes, err := base58.Decode(strings.TrimSpace(string(plaintext)))
	if err != nil {
		return nil, fmt.Errorf("keyvault: decode key: %w", err)
	}
	if len(keyBytes) != sealedKeyLen {
		return nil, fmt.Errorf("keyvault: key is %d bytes, want %d", len(keyBytes), sealedKeyLen)
	}
	return solana.PrivateKey(keyBytes), nil
}

// Encrypt seals a private key under the passphrase and returns the JSON blob.
// Used by cmd/keytool; the server only ever decrypts.
func Encrypt(key solana.PrivateKey, passphrase string) ([]byte, error) {
	if len(key) != sealedKeyLen {
		return nil, fmt.Errorf("keyvault: key is %d bytes, want %d", len(key), sealedKeyLen)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("keyvault: generate salt: %w", err)
	}
	nonce := make([]byte, gcmNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keyvault: generate nonce: %w", err)
	}

	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, derivedLen)
	if err != nil {
		return nil, fmt.Errorf("keyvault: derive key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("keyvault: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyvault: init gcm: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(base58.Encode(key)), nil)
	content := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]

	mac := hmac.New(sha256.New, derived)
	mac.Write(content)

	blob := Blob{
		Salt:    hex.EncodeToString(salt),
		IV:      hex.EncodeToString(nonce),
		Tag:     hex.EncodeToString(tag),
		Content: hex.EncodeToString(content),
		HMAC:    hex.EncodeToString(mac.Sum(nil)),
	}
	return json.MarshalIndent(blob, "", "  ")
}
