package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashnotes/internal/domain"
)

func TestSignInWithIssuedToken(t *testing.T) {
	p := NewProvider("secret", time.Hour)
	token, err := p.IssueToken(domain.User{ID: "u1", DisplayName: "Ann"})
	require.NoError(t, err)

	user, err := p.SignIn(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.User{ID: "u1", DisplayName: "Ann"}, user)

	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "u1", cur.ID)
}

func TestSignInRejectsForeignSecret(t *testing.T) {
	other := NewProvider("other", time.Hour)
	token, err := other.IssueToken(domain.User{ID: "u1"})
	require.NoError(t, err)

	p := NewProvider("secret", time.Hour)
	_, err = p.SignIn(context.Background(), token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
	_, ok := p.Current()
	assert.False(t, ok)
}

func TestSignInRejectsExpiredToken(t *testing.T) {
	p := NewProvider("secret", time.Minute)
	p.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	token, err := p.IssueToken(domain.User{ID: "u1"})
	require.NoError(t, err)

	p.now = func() time.Time { return time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC) }
	_, err = p.SignIn(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignInRejectsOtherAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	p := NewProvider("secret", time.Hour)
	_, err = p.SignIn(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignInRejectsMissingSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	p := NewProvider("secret", time.Hour)
	_, err = p.SignIn(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOnAuthChange(t *testing.T) {
	p := NewProvider("secret", time.Hour)
	var seen []string
	unsubscribe := p.OnAuthChange(func(u *domain.User) {
		if u == nil {
			seen = append(seen, "-")
			return
		}
		seen = append(seen, u.ID)
	})

	token, err := p.IssueToken(domain.User{ID: "u1"})
	require.NoError(t, err)
	_, err = p.SignIn(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, p.SignOut(context.Background()))

	unsubscribe()
	_, err = p.SignIn(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, []string{"-", "u1", "-"}, seen)
}
