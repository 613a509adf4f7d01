package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ms-community/internal/models"
)

// Verifier turns a raw bearer token into the calling actor.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (models.Actor, error)
}

// Claims carried by tokens the community app issues.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// HMACVerifier checks HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	Secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{Secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (models.Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Actor{}, fmt.Errorf("failed to parse token: %w", err)
	}
	return actorFromClaims(claims.Subject, claims.Role)
}

// IssueToken signs an HS256 token for actor. Used by cmd/migrate for the seeded
// accounts and by handler tests.
func IssueToken(secret string, actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func actorFromClaims(sub, role string) (models.Actor, error) {
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return models.Actor{}, fmt.Errorf("subject claim %q is not a user id", sub)
	}

	r := models.Role(role)
	switch r {
	case models.RoleAdmin, models.RoleOrganizer, models.RoleUser:
	case "":
		r = models.RoleUser
	default:
		return models.Actor{}, fmt.Errorf("unknown role %q", role)
	}
	return models.Actor{UserID: userID, Role: r}, nil
}
