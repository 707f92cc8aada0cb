package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
)

func sealGCM(t *testing.T, key string, plain []byte) (data []byte, ivHex, tagHex string) {
	t.Helper()
	block, err := aes.NewCipher(sizedKey("aes-128-gcm", key))
	if err != nil {
		t.Fatal(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatal(err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		t.Fatal(err)
	}
	sealed := gcm.Seal(nil, iv, plain, nil)
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]
	return ciphertext, hex.EncodeToString(iv), hex.EncodeToString(tag)
}

func TestDecryptGCMRoundTrip(t *testing.T) {
	plain := []byte("the original upload bytes")
	data, ivHex, tagHex := sealGCM(t, "0123456789abcdef", plain)

	got, err := Decrypt(data, "aes-128-gcm", "0123456789abcdef", ivHex, tagHex)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestDecryptGCMWrongKeyFails(t *testing.T) {
	data, ivHex, tagHex := sealGCM(t, "0123456789abcdef", []byte("secret"))
	_, err := Decrypt(data, "aes-128-gcm", "not-the-right-key", ivHex, tagHex)
	if err == nil {
		t.Fatal("expected authentication failure")
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *vault.Error, got %T", err)
	}
	if verr.ErrorCode() != "crypto" {
		t.Fatalf("unexpected code %q", verr.ErrorCode())
	}
}

func TestDecryptCBCRoundTrip(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"
	plain := []byte("cbc payload")
	block, err := aes.NewCipher(sizedKey("aes-256-cbc", key))
	if err != nil {
		t.Fatal(err)
	}
	iv := make([]byte, block.BlockSize())
	if _, err := rand.Read(iv); err != nil {
		t.Fatal(err)
	}
	pad := block.BlockSize() - len(plain)%block.BlockSize()
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	data := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(data, padded)

	got, err := Decrypt(data, "aes-256-cbc", key, hex.EncodeToString(iv), "")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestDecryptUnsupportedCipher(t *testing.T) {
	if _, err := Decrypt([]byte("x"), "rot13", "key", "00", ""); err == nil {
		t.Fatal("expected error for unsupported cipher")
	}
}

func TestDecryptBadIVHex(t *testing.T) {
	if _, err := Decrypt([]byte("x"), "aes-128-gcm", "key", "zz", "00"); err == nil {
		t.Fatal("expected error for invalid iv encoding")
	}
}
