package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"flashnotes/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Provider signs operators in with HS256 tokens and tells listeners whenever
// the signed-in user changes.
type Provider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	current   *domain.User
	listeners map[int]func(*domain.User)
	nextID    int
}

func NewProvider(secret string, ttl time.Duration) *Provider {
	return &Provider{
		secret:    []byte(secret),
		ttl:       ttl,
		now:       time.Now,
		listeners: make(map[int]func(*domain.User)),
	}
}

// IssueToken creates a token for user, valid for the provider's TTL.
func (p *Provider) IssueToken(user domain.User) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("issue token: %w", ErrInvalidToken)
	}
	now := p.now()
	c := claims{
		Name: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
}

// SignIn verifies token and makes its subject the current user.
func (p *Provider) SignIn(_ context.Context, token string) (domain.User, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || c.Subject == "" {
		return domain.User{}, ErrInvalidToken
	}

	user := domain.User{ID: c.Subject, DisplayName: c.Name}
	p.set(&user)
	return user, nil
}

func (p *Provider) SignOut(context.Context) error {
	p.set(nil)
	return nil
}

// Current returns the signed-in user, if any.
func (p *Provider) Current() (domain.User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return domain.User{}, false
	}
	return *p.current, true
}

// OnAuthChange calls fn with the current user right away and after every
// sign-in or sign-out; nil means signed out.
func (p *Provider) OnAuthChange(fn func(*domain.User)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	cur := copyUser(p.current)
	p.mu.Unlock()

	fn(cur)
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) set(user *domain.User) {
	p.mu.Lock()
	p.current = copyUser(user)
	fns := make([]func(*domain.User), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(copyUser(user))
	}
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
