package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	a := NewAuthenticator([]byte("test-secret"), time.Minute)

	token, exp, err := a.Issue("alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	subject, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestVerify_Expired(t *testing.T) {
	// A negative TTL produces a token that is already expired.
	a := NewAuthenticator([]byte("test-secret"), -time.Minute)

	token, _, err := a.Issue("alice")
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_TamperedSignature(t *testing.T) {
	a := NewAuthenticator([]byte("test-secret"), time.Minute)

	token, _, err := a.Issue("alice")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// Flip one character of the signature segment.
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = a.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer := NewAuthenticator([]byte("secret-one"), time.Minute)
	verifier := NewAuthenticator([]byte("secret-two"), time.Minute)

	token, _, err := issuer.Issue("alice")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Malformed(t *testing.T) {
	a := NewAuthenticator([]byte("test-secret"), time.Minute)

	for _, token := range []string{"", "garbage", "only.two", "a.b.c.d"} {
		_, err := a.Verify(token)
		assert.ErrorIs(t, err, ErrMalformedToken, "token %q", token)
	}
}

func TestValidUsername(t *testing.T) {
	valid := []string{"bob", "alice_99", "some-user", strings.Repeat("a", 24)}
	for _, u := range valid {
		assert.True(t, ValidUsername(u), "expected %q to be valid", u)
	}

	invalid := []string{"", "ab", strings.Repeat("a", 25), "has space", "dot.name", "émile"}
	for _, u := range invalid {
		assert.False(t, ValidUsername(u), "expected %q to be invalid", u)
	}
}

func TestDemoStore_Authenticate(t *testing.T) {
	store := NewDemoStore()

	assert.NoError(t, store.Authenticate("alice", "wonderland"))
	assert.ErrorIs(t, store.Authenticate("alice", "wrong"), ErrBadCredentials)
	assert.ErrorIs(t, store.Authenticate("nobody", "wonderland"), ErrBadCredentials)
}
