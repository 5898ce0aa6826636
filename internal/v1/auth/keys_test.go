package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestKey_Deterministic(t *testing.T) {
	d1 := DigestKey("opensesame")
	d2 := DigestKey("opensesame")
	assert.Equal(t, d1, d2)
}

func TestDigestKey_DistinctKeys(t *testing.T) {
	assert.NotEqual(t, DigestKey("opensesame"), DigestKey("opensesame "))
	assert.NotEqual(t, DigestKey("a"), DigestKey("b"))
}

func TestVerify(t *testing.T) {
	d := DigestKey("correct horse battery staple")

	assert.True(t, d.Verify("correct horse battery staple"))
	assert.False(t, d.Verify("correct horse battery"))
	assert.False(t, d.Verify(""))
}

func TestVerify_EmptyKey(t *testing.T) {
	// An empty key is a valid (if unwise) room secret.
	d := DigestKey("")
	assert.True(t, d.Verify(""))
	assert.False(t, d.Verify("anything"))
}

func TestVerify_LongKey(t *testing.T) {
	key := strings.Repeat("k", 4096)
	d := DigestKey(key)
	assert.True(t, d.Verify(key))
	assert.False(t, d.Verify(key+"x"))
}

func TestKeyDigest_NotPlaintext(t *testing.T) {
	// The digest must not contain the key itself in any recognisable form.
	d := DigestKey("topsecret")
	assert.NotContains(t, string(d[:]), "topsecret")
	assert.Len(t, d[:], 32)
}
