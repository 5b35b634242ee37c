package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"ms-boxoffice/internal/apperr"

	"github.com/skip2/go-qrcode"
)

// Payload is what a ticket's QR code carries.
type Payload struct {
	TicketID     string `json:"tid"`
	TicketNumber string `json:"num"`
}

type Generator struct {
	aead cipher.AEAD
	size int
}

func NewGenerator(secret string, size int) (*Generator, error) {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, fmt.Errorf("qr cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("qr gcm: %w", err)
	}
	if size <= 0 {
		size = 256
	}
	return &Generator{aead: aead, size: size}, nil
}

// Seal encrypts p into an opaque, URL-safe string.
func (g *Generator) Seal(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, g.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := g.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Anything tampered with or foreign fails with
// apperr.ErrInvalidQR.
func (g *Generator) Open(s string) (Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) < g.aead.NonceSize() {
		return Payload{}, apperr.ErrInvalidQR
	}
	nonce, ciphertext := raw[:g.aead.NonceSize()], raw[g.aead.NonceSize():]
	data, err := g.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Payload{}, apperr.ErrInvalidQR
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil || p.TicketNumber == "" {
		return Payload{}, apperr.ErrInvalidQR
	}
	return p, nil
}

// PNG renders a sealed payload as a QR image.
func (g *Generator) PNG(sealed string) ([]byte, error) {
	return qrcode.Encode(sealed, qrcode.Medium, g.size)
}
