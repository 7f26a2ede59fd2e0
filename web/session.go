package web

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionCookie = "rpmt_session"

// Sessions stellt signierte Sitzungstoken (HS256) aus und prüft sie.
type Sessions struct {
	Secret      []byte
	TTL         time.Duration
	RememberTTL time.Duration
	Now         func() time.Time
}

// Session ist der geprüfte Inhalt eines Sitzungstokens.
type Session struct {
	UserID    uint
	ID        string
	ExpiresAt time.Time
}

// Issue erstellt ein Token für userID. remember verlängert die Laufzeit.
func (s *Sessions) Issue(userID uint, remember bool) (token string, sess Session, err error) {
	now := s.now()
	ttl := s.TTL
	if remember {
		ttl = s.RememberTTL
	}
	sess = Session{UserID: userID, ID: uuid.NewString(), ExpiresAt: now.Add(ttl)}
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ID:        sess.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign session: %w", err)
	}
	return token, sess, nil
}

// Parse prüft Signatur und Ablauf eines Tokens.
func (s *Sessions) Parse(token string) (Session, error) {
	if len(s.Secret) == 0 {
		return Session{}, errors.New("session secret is empty")
	}
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return Session{}, err
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return Session{}, errors.New("invalid subject")
	}
	return Session{UserID: uint(id), ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *Sessions) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
