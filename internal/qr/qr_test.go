package qr

import (
	"bytes"
	"image/png"
	"testing"

	"ms-boxoffice/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	g, err := NewGenerator("secret", 128)
	require.NoError(t, err)

	p := Payload{TicketID: "ticket-1", TicketNumber: "TKT-20260314-ABCDEF12"}
	sealed, err := g.Seal(p)
	require.NoError(t, err)
	assert.NotContains(t, sealed, p.TicketNumber)

	got, err := g.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestOpenRejectsTamperedAndForeignPayloads(t *testing.T) {
	g, err := NewGenerator("secret", 128)
	require.NoError(t, err)
	other, err := NewGenerator("another-secret", 128)
	require.NoError(t, err)

	sealed, err := g.Seal(Payload{TicketID: "t", TicketNumber: "TKT-1"})
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, apperr.ErrInvalidQR)

	tampered := []byte(sealed)
	tampered[len(tampered)-2] ^= 0x01
	_, err = g.Open(string(tampered))
	assert.ErrorIs(t, err, apperr.ErrInvalidQR)

	_, err = g.Open("not base64 !!")
	assert.ErrorIs(t, err, apperr.ErrInvalidQR)
}

func TestPNG(t *testing.T) {
	g, err := NewGenerator("secret", 128)
	require.NoError(t, err)
	sealed, err := g.Seal(Payload{TicketID: "t", TicketNumber: "TKT-1"})
	require.NoError(t, err)

	img, err := g.PNG(sealed)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 128, decoded.Bounds().Dx())
}
