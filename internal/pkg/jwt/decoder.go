// internal/pkg/jwt/decoder.go
package jwt

import (
	"fmt"

	"authbridge/internal/domain/auth"
	xerrors "authbridge/internal/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Decoder reads a bearer token's payload without checking its signature.
// Tokens are trusted only as far as the API that issued them; the client
// never holds a verification key.
type Decoder struct {
	parser *jwt.Parser
}

func NewDecoder() *Decoder {
	return &Decoder{parser: jwt.NewParser()}
}

// Decode projects the recognized claims of token into a User.
func (d *Decoder) Decode(token string) (*auth.User, error) {
	if token == "" {
		return nil, xerrors.Decode(fmt.Errorf("empty token"))
	}

	claims := &Claims{}
	if _, _, err := d.parser.ParseUnverified(token, claims); err != nil {
		return nil, xerrors.Decode(err)
	}

	return &auth.User{
		ID:     string(claims.ID),
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   claims.Role,
		Avatar: claims.Avatar,
	}, nil
}
