package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("doc-1", "enrollments/enr-1/cv.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	resourceID, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", resourceID)
	assert.Equal(t, "enrollments/enr-1/cv.pdf", relPath)
	assert.Equal(t, expiresAt.Unix(), parsedExpiry.Unix())
}

func TestSignedURLRejectsTamperedResource(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, _, err := signer.Generate("doc-1", "enrollments/enr-1/cv.pdf")
	require.NoError(t, err)

	tampered := "doc-2" + token[len("doc-1"):]
	_, _, _, err = signer.Parse(tampered, false)
	require.Error(t, err)
}

func TestSignedURLRejectsWrongSecret(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	other := NewSignedURLSigner("different", time.Hour)

	token, _, err := signer.Generate("doc-1", "cv.pdf")
	require.NoError(t, err)

	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := &SignedURLSigner{secret: []byte("secret"), ttl: -time.Hour}

	token, _, err := signer.Generate("doc-1", "cv.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	resourceID, _, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", resourceID)
}

func TestSignedURLRejectsMalformedToken(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	_, _, _, err := signer.Parse("not-a-token", false)
	require.Error(t, err)
}
