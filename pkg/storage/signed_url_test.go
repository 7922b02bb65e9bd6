package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("exp-1", "rank-lists/exam-1.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 2*time.Second)

	id, key, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "exp-1", id)
	require.Equal(t, "rank-lists/exam-1.pdf", key)
}

func TestSignedURLSignerRejectsExpiredAndTampered(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("exp-1", "receipts/fee-1.pdf")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, err = signer.Parse(token)
	require.ErrorContains(t, err, "expired")

	signer.now = time.Now
	parts := strings.Split(token, ".")
	parts[0] = "exp-2"
	_, _, err = signer.Parse(strings.Join(parts, "."))
	require.ErrorContains(t, err, "signature")

	other := NewSignedURLSigner("other", time.Minute)
	_, _, err = other.Parse(token)
	require.Error(t, err)

	_, _, err = signer.Parse("garbage")
	require.Error(t, err)
}

func TestSignedURLSignerRequiresSecret(t *testing.T) {
	_, _, err := NewSignedURLSigner("", time.Minute).Generate("exp-1", "a.pdf")
	require.Error(t, err)
}
