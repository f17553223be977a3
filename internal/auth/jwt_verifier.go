package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"quicksend/internal/domain"
	"quicksend/internal/domain/models"
)

// allowedAlgs are the asymmetric algorithms Supabase signs access tokens with
var allowedAlgs = []string{"RS256", "ES256"}

// SupabaseJWTVerifier checks tokens against the project's JWKS
type SupabaseJWTVerifier struct {
	jwks   keyfunc.Keyfunc
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewJWTVerifier creates a verifier backed by the JWKS at jwksURL.
// Keys are cached and refreshed in the background until Close.
func NewJWTVerifier(jwksURL string, logger *slog.Logger) (*SupabaseJWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)

	return &SupabaseJWTVerifier{
		jwks:   jwks,
		cancel: cancel,
		logger: logger.With("component", "jwt-verifier"),
	}, nil
}

// NewJWTVerifierWithKeyfunc builds a verifier around an existing key source
func NewJWTVerifierWithKeyfunc(jwks keyfunc.Keyfunc, logger *slog.Logger) *SupabaseJWTVerifier {
	return &SupabaseJWTVerifier{
		jwks:   jwks,
		cancel: func() {},
		logger: logger.With("component", "jwt-verifier"),
	}
}

var _ JWTVerifier = (*SupabaseJWTVerifier)(nil)

// VerifyToken implements JWTVerifier
func (v *SupabaseJWTVerifier) VerifyToken(tokenString string) (*models.SupabaseClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SupabaseClaims{}, v.jwks.Keyfunc,
		jwt.WithValidMethods(allowedAlgs),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		v.logger.Debug("token rejected", "error", err)
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.SupabaseClaims)
	if !ok || claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}

	// anon keys are JWTs too; only signed-in users count
	if claims.Role != "authenticated" || claims.IsAnonymous {
		v.logger.Debug("token role rejected", "role", claims.Role, "user_id", claims.Subject)
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close stops the background JWKS refresh
func (v *SupabaseJWTVerifier) Close() error {
	v.cancel()
	return nil
}
