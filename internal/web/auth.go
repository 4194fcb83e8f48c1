package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/account"
	"github.com/willemschots/cardhub/internal/email"
)

const issuer = "cardhub"

type credentialsBody struct {
	Email    email.Address    `json:"email"`
	Password account.Password `json:"password"`
}

func (b credentialsBody) credentials() account.Credentials {
	return account.Credentials{
		Email:    b.Email,
		Password: b.Password,
	}
}

type accessToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) register(ctx context.Context, b credentialsBody) (accountResponse, error) {
	u, err := s.deps.Accounts.Register(ctx, b.credentials())
	if err != nil {
		return accountResponse{}, err
	}

	return newAccountResponse(u), nil
}

func (s *Server) login(ctx context.Context, b credentialsBody) (accessToken, error) {
	u, err := s.deps.Accounts.Authenticate(ctx, b.credentials())
	if err != nil {
		return accessToken{}, err
	}

	return s.issueAccessToken(u.ID)
}

func (s *Server) me(ctx context.Context, _ struct{}) (accountResponse, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return accountResponse{}, errUnauthorized
	}

	u, err := s.deps.Accounts.Get(ctx, userID)
	if err != nil {
		return accountResponse{}, err
	}

	return newAccountResponse(u), nil
}

// issueAccessToken signs a HS256 JWT with the user ID as subject.
func (s *Server) issueAccessToken(userID uuid.UUID) (accessToken, error) {
	now := s.NowFunc()
	expiresAt := now.Add(s.cfg.JWTExpiry)

	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTKey.SecretValue())
	if err != nil {
		return accessToken{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return accessToken{
		Token:     signed,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Server) parseAccessToken(raw string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.cfg.JWTKey.SecretValue(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.NowFunc),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", errUnauthorized, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid subject: %w", errUnauthorized, err)
	}

	return userID, nil
}

// loggedIn only lets requests with a valid bearer token through.
func (s *Server) loggedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			s.handleError(w, r, errUnauthorized)
			return
		}

		userID, err := s.parseAccessToken(raw)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		ctx := ContextWithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKey string

const userIDKey ctxKey = "cardhubUserID"

func ContextWithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}

	return userID, true
}
