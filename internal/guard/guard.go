// Package guard decides what a route renders for a given session view.
//
// Guards are pure: Evaluate looks at a View and returns a Decision. Side
// effects (navigation) happen in Mount, which fires a redirect only when the
// decision's dependency key changes, so re-rendering with the same inputs
// never navigates twice.
package guard

import (
	"authbridge/internal/domain/auth"
)

const (
	DefaultSignInPath = "/login"
	DefaultSignUpPath = "/register"
)

// Outcome is what the guarded route should render.
type Outcome int

const (
	// RenderNothing renders no content.
	RenderNothing Outcome = iota
	// RenderFallback renders the loading placeholder.
	RenderFallback
	// RenderChildren renders the guarded content.
	RenderChildren
)

func (o Outcome) String() string {
	switch o {
	case RenderFallback:
		return "fallback"
	case RenderChildren:
		return "children"
	default:
		return "nothing"
	}
}

// Decision is the result of evaluating a guard.
type Decision struct {
	Outcome Outcome
	// Redirect is the path to navigate to, if any.
	Redirect string
	Replace  bool
	// Key identifies the inputs the redirect depends on.
	Key string
}

// Guard maps a session view to a decision.
type Guard interface {
	Evaluate(v auth.View) Decision
}

// Protect renders children only for an authenticated session and sends
// everyone else to RedirectTo.
type Protect struct {
	RedirectTo string
	Replace    bool
}

func (p Protect) target() string {
	if p.RedirectTo == "" {
		return DefaultSignInPath
	}
	return p.RedirectTo
}

func (p Protect) Evaluate(v auth.View) Decision {
	switch {
	case v.Loading:
		return Decision{Outcome: RenderFallback, Key: "loading"}
	case !v.SignedIn():
		return Decision{Outcome: RenderNothing, Redirect: p.target(), Replace: p.Replace, Key: "out:" + p.target()}
	default:
		return Decision{Outcome: RenderChildren, Key: "in:" + v.User.ID}
	}
}

// SignedIn renders children only once the session is resolved and authenticated.
type SignedIn struct{}

func (SignedIn) Evaluate(v auth.View) Decision {
	if v.SignedIn() {
		return Decision{Outcome: RenderChildren}
	}
	return Decision{Outcome: RenderNothing}
}

// SignedOut renders children only once the session is resolved without a user.
type SignedOut struct{}

func (SignedOut) Evaluate(v auth.View) Decision {
	if v.SignedOut() {
		return Decision{Outcome: RenderChildren}
	}
	return Decision{Outcome: RenderNothing}
}

// Redirect unconditionally navigates to Path and renders nothing.
type Redirect struct {
	Path    string
	Replace bool
}

func (r Redirect) Evaluate(auth.View) Decision {
	return Decision{Outcome: RenderNothing, Redirect: r.Path, Replace: r.Replace, Key: r.Path}
}

// RedirectToSignIn redirects to path, or /login when empty.
func RedirectToSignIn(path string) Redirect {
	if path == "" {
		path = DefaultSignInPath
	}
	return Redirect{Path: path}
}

// RedirectToSignUp redirects to path, or /register when empty.
func RedirectToSignUp(path string) Redirect {
	if path == "" {
		path = DefaultSignUpPath
	}
	return Redirect{Path: path}
}

// WithAuth wraps content that needs a signed-in user but never navigates.
type WithAuth struct{}

func (WithAuth) Evaluate(v auth.View) Decision {
	switch {
	case v.Loading:
		return Decision{Outcome: RenderFallback}
	case !v.SignedIn():
		return Decision{Outcome: RenderNothing}
	default:
		return Decision{Outcome: RenderChildren}
	}
}
