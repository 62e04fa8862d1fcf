// internal/service/auth/strategy.go
package auth

import (
	"context"

	"authbridge/internal/domain/auth"
	"authbridge/internal/pkg/apiclient"
	xerrors "authbridge/internal/pkg/errors"
	"authbridge/internal/pkg/jwt"
)

// Strategies performs the password and OTP login requests. Both are plain
// request/transform functions; nothing is retried.
type Strategies struct {
	api     *apiclient.Client
	decoder *jwt.Decoder
}

func NewStrategies(api *apiclient.Client, decoder *jwt.Decoder) *Strategies {
	return &Strategies{api: api, decoder: decoder}
}

// LoginWithCredentials posts email/password to url.
func (s *Strategies) LoginWithCredentials(ctx context.Context, url string, p auth.CredentialsPayload) (*auth.AuthResponse, error) {
	return s.exchange(ctx, url, p)
}

// LoginWithOTP posts email/otp to url.
func (s *Strategies) LoginWithOTP(ctx context.Context, url string, p auth.OTPPayload) (*auth.AuthResponse, error) {
	return s.exchange(ctx, url, p)
}

func (s *Strategies) exchange(ctx context.Context, url string, body interface{}) (*auth.AuthResponse, error) {
	var data auth.TokenResponse
	if err := s.api.Post(ctx, url, body, &data, nil); err != nil {
		return nil, err
	}
	if data.AccessToken == "" {
		return nil, xerrors.MissingToken()
	}

	user, err := s.decoder.Decode(data.AccessToken)
	if err != nil {
		return nil, err
	}

	return &auth.AuthResponse{
		IsAuthenticated: true,
		AccessToken:     data.AccessToken,
		Message:         data.Message,
		User:            user,
	}, nil
}
