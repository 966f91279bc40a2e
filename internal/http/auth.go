package http

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"user-ledger/internal/domain"
)

const sessionKey = "session"

var errInvalidToken = errors.New("invalid token")

// claims bind a token to one account and one credential. The subject is the
// username; UserID and CredentialVersion must still match when the token is
// used, so a re-registered name or a changed password invalidates it.
type claims struct {
	jwt.RegisteredClaims
	UserID            string `json:"uid"`
	CredentialVersion string `json:"cv"`
}

type session struct {
	username          string
	userID            string
	credentialVersion string
}

// credentialVersion fingerprints the user's salt, which is redrawn on every
// password reset.
func credentialVersion(user *domain.User) string {
	sum := sha256.Sum256(user.Salt())
	return hex.EncodeToString(sum[:8])
}

func (h *Handler) generateToken(user *domain.User, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
		},
		UserID:            user.ID().String(),
		CredentialVersion: credentialVersion(user),
	})
	return token.SignedString(h.secret)
}

func (h *Handler) parseToken(tokenString string) (session, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(*jwt.Token) (any, error) {
		return h.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return session{}, err
	}
	if !token.Valid || c.Subject == "" || c.UserID == "" || c.CredentialVersion == "" {
		return session{}, errInvalidToken
	}
	return session{username: c.Subject, userID: c.UserID, credentialVersion: c.CredentialVersion}, nil
}

func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		s, err := h.parseToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(sessionKey, s)
		c.Next()
	}
}

// currentUser resolves the session to the account it was issued for. Callers
// must hold mu.
func (h *Handler) currentUser(c *gin.Context) (*domain.User, bool) {
	s, _ := c.MustGet(sessionKey).(session)
	user, err := h.registry.Get(s.username)
	if err != nil || user.ID().String() != s.userID || credentialVersion(user) != s.credentialVersion {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session is no longer valid"})
		return nil, false
	}
	return user, true
}
