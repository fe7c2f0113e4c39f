package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AnonymousUsername is the identity recorded for shoppers without a token.
const AnonymousUsername = "AnonymousUser"

// AccessTokenClaims represents the typed JWT issued to shoppers by the
// account service. This service only verifies them.
type AccessTokenClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	jwt.RegisteredClaims
}
