package identity

import "github.com/golang-jwt/jwt/v5"

const tokenTypeAccess = "access"

// Claims is the payload of locally signed access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"typ"`
}
