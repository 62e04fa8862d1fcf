// internal/domain/auth/entity.go
package auth

import (
	"fmt"
	"strings"

	xerrors "authbridge/internal/pkg/errors"
)

// User is the identity projection decoded from a bearer token.
type User struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Email  string                 `json:"email"`
	Role   string                 `json:"role,omitempty"`
	Avatar string                 `json:"avatar,omitempty"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// Session is the mutable state owned by a session controller.
type Session struct {
	User            *User          `json:"user"`
	IsAuthenticated bool           `json:"isAuthenticated"`
	Loading         bool           `json:"loading"`
	LastError       *xerrors.Error `json:"lastError"`
}

// View returns the read-only projection consumed by guards.
func (s Session) View() View {
	return View{User: s.User, IsAuthenticated: s.IsAuthenticated, Loading: s.Loading}
}

// View is the read-only session capability.
type View struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
	Loading         bool  `json:"loading"`
}

// SignedIn reports a resolved, authenticated session.
func (v View) SignedIn() bool {
	return !v.Loading && v.IsAuthenticated && v.User != nil
}

// SignedOut reports a resolved session that is not signed in.
func (v View) SignedOut() bool {
	return !v.Loading && !v.SignedIn()
}

// SocialProvider identifies an OAuth identity provider.
type SocialProvider string

const (
	ProviderGoogle   SocialProvider = "google"
	ProviderFacebook SocialProvider = "facebook"
	ProviderLinkedIn SocialProvider = "linkedin"
)

// SocialProviders lists every supported provider.
var SocialProviders = []SocialProvider{ProviderGoogle, ProviderFacebook, ProviderLinkedIn}

func (p SocialProvider) Valid() bool {
	for _, known := range SocialProviders {
		if p == known {
			return true
		}
	}
	return false
}

// ParseSocialProvider validates a provider name.
func ParseSocialProvider(s string) (SocialProvider, error) {
	p := SocialProvider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", xerrors.Config(fmt.Sprintf("unknown social provider %q", s))
	}
	return p, nil
}

// SocialProviderConfig is the host-supplied client configuration for one provider.
type SocialProviderConfig struct {
	Provider SocialProvider `json:"provider"`
	ClientID string         `json:"clientId"`
}
