// Package vault decrypts stored assets using versioned keys.
//
// Uploads may be encrypted at rest by the platform; the file record carries
// the cipher name, the key version, and the hex-encoded IV and auth tag.
// Keys are resolved from the worker configuration (or environment) by
// version suffix, so rotated keys keep older uploads readable.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"strings"
)

// Error wraps a decryption failure so the pipeline can classify it.
type Error struct {
	Cipher string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decrypt %s: %v", e.Cipher, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode identifies crypto failures at the pipeline error boundary.
func (e *Error) ErrorCode() string { return "crypto" }

// KeySource resolves a decryption key by version suffix.
type KeySource interface {
	Key(version string) (string, bool)
}

// Decrypt reverses the platform's at-rest encryption. The IV and the GCM
// authentication tag arrive hex encoded on the file record.
func Decrypt(data []byte, cipherName, key, ivHex, tagHex string) ([]byte, error) {
	iv, err := hex.DecodeString(strings.TrimSpace(ivHex))
	if err != nil {
		return nil, &Error{Cipher: cipherName, Err: fmt.Errorf("decode iv: %w", err)}
	}

	name := strings.ToLower(strings.TrimSpace(cipherName))
	switch name {
	case "aes-128-gcm", "aes-192-gcm", "aes-256-gcm":
		tag, err := hex.DecodeString(strings.TrimSpace(tagHex))
		if err != nil {
			return nil, &Error{Cipher: cipherName, Err: fmt.Errorf("decode tag: %w", err)}
		}
		return decryptGCM(data, name, key, iv, tag)
	case "aes-128-cbc", "aes-192-cbc", "aes-256-cbc":
		return decryptCBC(data, name, key, iv)
	default:
		return nil, &Error{Cipher: cipherName, Err: fmt.Errorf("unsupported cipher")}
	}
}

func decryptGCM(data []byte, name, key string, iv, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(sizedKey(name, key))
	if err != nil {
		return nil, &Error{Cipher: name, Err: err}
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, &Error{Cipher: name, Err: err}
	}
	sealed := make([]byte, 0, len(data)+len(tag))
	sealed = append(sealed, data...)
	sealed = append(sealed, tag...)
	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, &Error{Cipher: name, Err: err}
	}
	return plain, nil
}

func decryptCBC(data []byte, name, key string, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(sizedKey(name, key))
	if err != nil {
		return nil, &Error{Cipher: name, Err: err}
	}
	if len(iv) != block.BlockSize() {
		return nil, &Error{Cipher: name, Err: fmt.Errorf("iv length %d", len(iv))}
	}
	if len(data) == 0 || len(data)%block.BlockSize() != 0 {
		return nil, &Error{Cipher: name, Err: fmt.Errorf("ciphertext length %d", len(data))}
	}
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)
	return stripPadding(name, plain)
}

func stripPadding(name string, plain []byte) ([]byte, error) {
	pad := int(plain[len(plain)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(plain) {
		return nil, &Error{Cipher: name, Err: fmt.Errorf("invalid padding")}
	}
	for _, b := range plain[len(plain)-pad:] {
		if int(b) != pad {
			return nil, &Error{Cipher: name, Err: fmt.Errorf("invalid padding")}
		}
	}
	return plain[:len(plain)-pad], nil
}

// sizedKey truncates or zero-pads the configured key to the cipher's size,
// matching how the platform derives its OpenSSL keys.
func sizedKey(name, key string) []byte {
	size := 16
	switch {
	case strings.HasPrefix(name, "aes-192"):
		size = 24
	case strings.HasPrefix(name, "aes-256"):
		size = 32
	}
	sized := make([]byte, size)
	copy(sized, key)
	return sized
}
