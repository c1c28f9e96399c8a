// Package secret implements the "AES:<base64>" password scheme used in
// magic-start markers, compatible with MySQL's AES_ENCRYPT default
// (AES-128-ECB with XOR-folded keys, PKCS7 padding).
package secret

import (
	"crypto/aes"
	"encoding/base64"
	"errors"
	"strings"
)

// Prefix marks an encrypted password value.
const Prefix = "AES:"

var (
	ErrNoKey        = errors.New("encryption key is not set")
	errBadChipertxt = errors.New("malformed ciphertext")
)

// foldKey reduces an arbitrary-length key to 16 bytes the way MySQL
// does: XOR the key bytes cyclically into the block.
func foldKey(key string) []byte {
	folded := make([]byte, 16)
	for i := 0; i < len(key); i++ {
		folded[i%16] ^= key[i]
	}
	return folded
}

// Encrypt returns "AES:<base64>" for the given plaintext.
func Encrypt(plain, key string) (string, error) {
	if key == "" {
		return "", ErrNoKey
	}
	block, err := aes.NewCipher(foldKey(key))
	if err != nil {
		return "", err
	}

	pad := aes.BlockSize - len(plain)%aes.BlockSize
	buf := make([]byte, len(plain)+pad)
	copy(buf, plain)
	for i := len(plain); i < len(buf); i++ {
		buf[i] = byte(pad)
	}

	for i := 0; i < len(buf); i += aes.BlockSize {
		block.Encrypt(buf[i:i+aes.BlockSize], buf[i:i+aes.BlockSize])
	}
	return Prefix + base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt reverses Encrypt. Values without the "AES:" prefix come back
// unchanged, as does anything that fails to decrypt: a wrong key must
// not break session setup, it just yields a password the remote will
// reject.
func Decrypt(value, key string) string {
	if !strings.HasPrefix(value, Prefix) || key == "" {
		return value
	}
	raw, err := base64.StdEncoding.DecodeString(value[len(Prefix):])
	if err != nil {
		return value
	}
	plain, err := decryptECB(raw, key)
	if err != nil {
		return value
	}
	return plain
}

func decryptECB(raw []byte, key string) (string, error) {
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", errBadChipertxt
	}
	block, err := aes.NewCipher(foldKey(key))
	if err != nil {
		return "", err
	}
	buf := make([]byte, len(raw))
	copy(buf, raw)
	for i := 0; i < len(buf); i += aes.BlockSize {
		block.Decrypt(buf[i:i+aes.BlockSize], buf[i:i+aes.BlockSize])
	}
	pad := int(buf[len(buf)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(buf) {
		return "", errBadChipertxt
	}
	for _, b := range buf[len(buf)-pad:] {
		if int(b) != pad {
			return "", errBadChipertxt
		}
	}
	return string(buf[:len(buf)-pad]), nil
}
