package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// SavePrivateKey dumps the raw 32-byte secret key to path: no header,
// no framing. The handle is released before the call returns.
func (w *Wallet) SavePrivateKey(path string) error {
	return os.WriteFile(path, w.secretKey.Serialize(), 0o600)
}

// LoadFromPrivateKeyFile reconstructs a wallet from a raw 32-byte key
// file written by SavePrivateKey.
func LoadFromPrivateKeyFile(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("key file must be 32 bytes (got %d)", len(raw))
	}
	return fromSecretKey(secp256k1.PrivKeyFromBytes(raw)), nil
}

// Encrypted keystore: a JSON envelope around the secret key sealed with
// ChaCha20-Poly1305 under a scrypt-derived key. The raw dump above
// stays the interchange format; this is for keys at rest on operator
// machines.

const keyStoreVersion = "RCKSv1"

type keyStoreFile struct {
	Version       string `json:"version"`
	KDF           string `json:"kdf"` // "scrypt"
	SaltHex       string `json:"salt_hex"`
	N             int    `json:"n"`
	R             int    `json:"r"`
	P             int    `json:"p"`
	NonceHex      string `json:"nonce_hex"`
	CiphertextHex string `json:"ciphertext_hex"`
}

const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// SaveKeystore writes the secret key sealed under the passphrase.
func (w *Wallet) SaveKeystore(path string, passphrase []byte) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	sealKey, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.New(sealKey)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	sealed := aead.Seal(nil, nonce, w.secretKey.Serialize(), []byte(keyStoreVersion))

	ks := keyStoreFile{
		Version:       keyStoreVersion,
		KDF:           "scrypt",
		SaltHex:       hex.EncodeToString(salt),
		N:             scryptN,
		R:             scryptR,
		P:             scryptP,
		NonceHex:      hex.EncodeToString(nonce),
		CiphertextHex: hex.EncodeToString(sealed),
	}
	raw, err := json.Marshal(ks)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	return os.WriteFile(path, raw, 0o600)
}

// LoadFromKeystore opens a keystore file with the passphrase.
func LoadFromKeystore(path string, passphrase []byte) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keyStoreFile
	if err := json.Unmarshal(raw, &ks); err != nil {
		return nil, err
	}
	if ks.Version != keyStoreVersion {
		return nil, fmt.Errorf("unsupported keystore version: %q", ks.Version)
	}
	if ks.KDF != "scrypt" {
		return nil, fmt.Errorf("unsupported kdf: %q", ks.KDF)
	}
	salt, err := hex.DecodeString(ks.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("salt_hex: %w", err)
	}
	nonce, err := hex.DecodeString(ks.NonceHex)
	if err != nil {
		return nil, fmt.Errorf("nonce_hex: %w", err)
	}
	sealed, err := hex.DecodeString(ks.CiphertextHex)
	if err != nil {
		return nil, fmt.Errorf("ciphertext_hex: %w", err)
	}

	sealKey, err := scrypt.Key(passphrase, salt, ks.N, ks.R, ks.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(sealKey)
	if err != nil {
		return nil, err
	}
	secret, err := aead.Open(nil, nonce, sealed, []byte(keyStoreVersion))
	if err != nil {
		return nil, fmt.Errorf("keystore open: %w", err)
	}
	if len(secret) != 32 {
		return nil, fmt.Errorf("keystore holds %d key bytes, want 32", len(secret))
	}
	return fromSecretKey(secp256k1.PrivKeyFromBytes(secret)), nil
}
