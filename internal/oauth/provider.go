package oauth

import (
	"net/url"
	"path"
	"strings"

	"authbridge/internal/domain/auth"

	"github.com/oklog/ulid/v2"
)

const (
	DefaultCallbackPath = "/api/auth"
	popupFeatures       = "width=500,height=600,top=100,left=100"
)

type endpoint struct {
	authorizeURL string
	scope        string
	extra        func(url.Values, func() string)
}

var endpoints = map[auth.SocialProvider]endpoint{
	auth.ProviderGoogle: {
		authorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		scope:        "profile email",
		extra: func(v url.Values, _ func() string) {
			v.Set("access_type", "offline")
			v.Set("prompt", "consent")
		},
	},
	auth.ProviderFacebook: {
		authorizeURL: "https://www.facebook.com/v18.0/dialog/oauth",
		scope:        "email public_profile",
	},
	auth.ProviderLinkedIn: {
		authorizeURL: "https://www.linkedin.com/oauth/v2/authorization",
		scope:        "openid profile email",
		extra: func(v url.Values, state func() string) {
			v.Set("state", state())
		},
	},
}

// RedirectURI is where the provider sends the popup back to: the callback endpoint for provider.
func RedirectURI(origin, callbackPath string, provider auth.SocialProvider) string {
	if callbackPath == "" {
		callbackPath = DefaultCallbackPath
	}
	return strings.TrimRight(origin, "/") + path.Join("/", callbackPath, string(provider))
}

// AuthorizeURL builds the provider authorization URL. newState is only called
// for providers that require a state parameter.
func AuthorizeURL(provider auth.SocialProvider, clientID, redirectURI string, newState func() string) string {
	ep, ok := endpoints[provider]
	if !ok {
		return ""
	}
	if newState == nil {
		newState = NewState
	}

	v := url.Values{}
	v.Set("client_id", clientID)
	v.Set("redirect_uri", redirectURI)
	v.Set("response_type", "code")
	v.Set("scope", ep.scope)
	if ep.extra != nil {
		ep.extra(v, newState)
	}
	return ep.authorizeURL + "?" + v.Encode()
}

// NewState returns an opaque, unique state token.
func NewState() string {
	return ulid.Make().String()
}

func popupName(provider auth.SocialProvider) string {
	return string(provider) + "AuthPopup"
}
