// internal/middleware/guard_middleware.go
package middleware

import (
	"net/http"

	"authbridge/internal/guard"

	"github.com/gin-gonic/gin"
)

const loadingText = "Loading..."

type guardOptions struct {
	fallback gin.HandlerFunc
	remember func(c *gin.Context, target string)
}

type GuardOption func(*guardOptions)

// WithFallback replaces the loading placeholder handler.
func WithFallback(h gin.HandlerFunc) GuardOption {
	return func(o *guardOptions) { o.fallback = h }
}

// WithRememberRedirect is called with the requested URI before a guard
// redirects away from it, so login can send the caller back.
func WithRememberRedirect(fn func(c *gin.Context, target string)) GuardOption {
	return func(o *guardOptions) { o.remember = fn }
}

// Guard adapts a route guard to gin. Children continue the chain, the
// fallback renders the loading placeholder, and nothing is either a redirect
// or an empty 204.
func Guard(g guard.Guard, source SessionSource, opts ...GuardOption) gin.HandlerFunc {
	o := guardOptions{
		fallback: func(c *gin.Context) { c.String(http.StatusOK, loadingText) },
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		view := source.View(c)
		c.Set(ctxView, view)

		d := g.Evaluate(view)
		switch d.Outcome {
		case guard.RenderChildren:
			c.Next()
		case guard.RenderFallback:
			o.fallback(c)
			c.Abort()
		default:
			if d.Redirect == "" {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			if o.remember != nil && c.Request.Method == http.MethodGet {
				o.remember(c, c.Request.URL.RequestURI())
			}
			status := http.StatusFound
			if d.Replace {
				status = http.StatusSeeOther
			}
			c.Redirect(status, d.Redirect)
			c.Abort()
		}
	}
}
