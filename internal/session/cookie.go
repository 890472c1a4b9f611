package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "dbay_session"
	cookieIssuer      = "dbay-web"
)

var ErrNoCookie = errors.New("no session cookie")

type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CookieCodec signs the session ID into an HS256 token carried by the cookie.
// The cookie never contains the backend token or any user data.
type CookieCodec struct {
	name   string
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewCookieCodec(secret string, ttl time.Duration, secure bool) *CookieCodec {
	return &CookieCodec{
		name:   DefaultCookieName,
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

func (c *CookieCodec) Encode(sessionID string) (*http.Cookie, error) {
	now := c.now()
	claims := cookieClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cookieIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return &http.Cookie{
		Name:     c.name,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(c.ttl),
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Decode returns the session ID from the request cookie.
func (c *CookieCodec) Decode(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.name)
	if err != nil || cookie.Value == "" {
		return "", ErrNoCookie
	}

	claims := &cookieClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}
	if !token.Valid || claims.SessionID == "" {
		return "", errors.New("invalid session cookie: missing session id")
	}
	return claims.SessionID, nil
}

// Expire returns a cookie that removes the session cookie from the browser.
func (c *CookieCodec) Expire() *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
