package auth

import "quicksend/internal/domain/models"

// JWTVerifier validates Supabase access tokens presented to the group API
type JWTVerifier interface {
	// VerifyToken returns the token's claims, or domain.ErrUnauthorized when
	// the token is malformed, expired, badly signed or not a signed-in user.
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	// Close releases the JWKS client
	Close() error
}
