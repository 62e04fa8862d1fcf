// internal/domain/auth/dto.go
package auth

import (
	"encoding/json"
	"fmt"

	xerrors "authbridge/internal/pkg/errors"
)

// Method is the tag of a login payload.
type Method string

const (
	MethodCredentials Method = "credentials"
	MethodOTP         Method = "otp"
)

// LoginPayload is either a CredentialsPayload or an OTPPayload.
type LoginPayload interface {
	Method() Method
	// Validate reports missing required fields as a validation error.
	Validate() error
}

// CredentialsPayload for email/password login
type CredentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (CredentialsPayload) Method() Method { return MethodCredentials }

func (p CredentialsPayload) Validate() error {
	fields := map[string]string{}
	if p.Email == "" {
		fields["email"] = "Email is required."
	}
	if p.Password == "" {
		fields["password"] = "Password is required."
	}
	if len(fields) > 0 {
		return xerrors.Validation(fields)
	}
	return nil
}

// OTPPayload for one-time-password login
type OTPPayload struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (OTPPayload) Method() Method { return MethodOTP }

func (p OTPPayload) Validate() error {
	fields := map[string]string{}
	if p.Email == "" {
		fields["email"] = "Email is required."
	}
	if p.OTP == "" {
		fields["otp"] = "OTP is required."
	}
	if len(fields) > 0 {
		return xerrors.Validation(fields)
	}
	return nil
}

// DecodeLoginPayload decodes a tagged payload: {"provider":"credentials"|"otp", ...}.
func DecodeLoginPayload(data []byte) (LoginPayload, error) {
	var tag struct {
		Provider Method `json:"provider"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("failed to decode login payload: %w", err)
	}

	switch tag.Provider {
	case MethodCredentials:
		var p CredentialsPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode credentials payload: %w", err)
		}
		return p, nil
	case MethodOTP:
		var p OTPPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode otp payload: %w", err)
		}
		return p, nil
	default:
		return nil, xerrors.InvalidMethod(string(tag.Provider))
	}
}

// AuthResponse is the normalized outcome of every login flow, and the shape
// posted from the OAuth popup to its opener.
type AuthResponse struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Message         string `json:"message"`
	AccessToken     string `json:"accessToken,omitempty"`
	User            *User  `json:"user,omitempty"`
	Error           string `json:"error,omitempty"`
}

// FailureMessage returns the best human-readable reason for a failed response.
func (r *AuthResponse) FailureMessage() string {
	if r.Error != "" {
		return r.Error
	}
	if r.Message != "" {
		return r.Message
	}
	return "Login failed"
}

// TokenResponse is what the login, OTP and refresh endpoints return.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	Message     string `json:"message,omitempty"`
}
