package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// encryptedTokenPrefix tags tokens produced by Encrypt so Decrypt never has to guess.
const encryptedTokenPrefix = "e1."

var ErrInvalidApplicationRef = errors.New("invalid application reference")

// IDCodec converts between numeric application ids, pretty ids and URL tokens.
//
// The token is AES-CBC with a fixed IV so the same id always maps to the same token.
// It only discourages casual enumeration; it is neither authenticated nor confidential.
type IDCodec struct {
	Program string
	Year    int

	block cipher.Block
	iv    []byte
}

// NewIDCodec derives the cipher key and IV from secret.
func NewIDCodec(program string, year int, secret string) (*IDCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("id secret is required")
	}
	if strings.TrimSpace(program) == "" {
		return nil, errors.New("program code is required")
	}

	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("admissions-api/application-token"))
	material := make([]byte, 32+aes.BlockSize)
	if _, err := io.ReadFull(kdf, material); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}

	block, err := aes.NewCipher(material[:32])
	if err != nil {
		return nil, fmt.Errorf("init token cipher: %w", err)
	}

	return &IDCodec{
		Program: strings.ToUpper(strings.TrimSpace(program)),
		Year:    year,
		block:   block,
		iv:      material[32:],
	}, nil
}

// PrettyID formats id as PROGRAM-YEAR-000123.
func (c *IDCodec) PrettyID(id uint) string {
	return fmt.Sprintf("%s-%d-%06d", c.Program, c.Year, id)
}

// Token returns the encrypted pretty id used in applicant-facing links.
func (c *IDCodec) Token(id uint) string {
	return c.Encrypt(c.PrettyID(id))
}

// Encrypt returns a tagged, URL-safe token for plaintext.
func (c *IDCodec) Encrypt(plaintext string) string {
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return encryptedTokenPrefix + base64.RawURLEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt. Input without the token tag, or that fails to decode,
// is returned unchanged: callers pass either a token or a raw pretty id.
func (c *IDCodec) Decrypt(token string) string {
	if !strings.HasPrefix(token, encryptedTokenPrefix) {
		return token
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, encryptedTokenPrefix))
	if err != nil || len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return token
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)
	plain, ok := pkcs7Unpad(out, aes.BlockSize)
	if !ok {
		return token
	}
	return string(plain)
}

// ResolveApplicationID accepts a token, a pretty id or a bare numeric id.
func (c *IDCodec) ResolveApplicationID(ref string) (uint, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, ErrInvalidApplicationRef
	}
	return ParseNumericID(c.Decrypt(ref))
}

// ParseNumericID extracts the numeric id after the last '-' of a pretty id.
func ParseNumericID(pretty string) (uint, error) {
	tail := pretty
	if idx := strings.LastIndex(pretty, "-"); idx >= 0 {
		tail = pretty[idx+1:]
	}
	n, err := strconv.ParseUint(strings.TrimSpace(tail), 10, 64)
	if err != nil || n == 0 {
		return 0, ErrInvalidApplicationRef
	}
	return uint(n), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, bool) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, false
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
