// internal/handlers/oauth/callback_handler.go
package oauth

import (
	"encoding/json"
	"html/template"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"authbridge/internal/domain/auth"
	"authbridge/internal/metrics"
	"authbridge/internal/pkg/apiclient"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const DefaultExchangePath = "/auth"

// invalidProviderLabel keeps arbitrary path segments out of metric labels.
const invalidProviderLabel = "invalid"

// The page posts its payload to the opener on the opener's own origin, then closes itself.
var relayPage = template.Must(template.New("relay").Parse(`<!DOCTYPE html>
<html><body><script>
  if (window.opener) {
    window.opener.postMessage({{.}}, window.origin);
  }
  window.close();
</script></body></html>
`))

var duplicateSlashes = regexp.MustCompile(`([^:])/{2,}`)

// cleanURL collapses repeated slashes outside the scheme separator.
func cleanURL(u string) string {
	return duplicateSlashes.ReplaceAllString(u, "$1/")
}

type CallbackHandler struct {
	api          *apiclient.Client
	apiBaseURL   string
	exchangePath string
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

func NewCallbackHandler(api *apiclient.Client, apiBaseURL, exchangePath string, logger *zap.Logger, m *metrics.Metrics) *CallbackHandler {
	if exchangePath == "" {
		exchangePath = DefaultExchangePath
	}
	return &CallbackHandler{
		api:          api,
		apiBaseURL:   apiBaseURL,
		exchangePath: exchangePath,
		logger:       logger,
		metrics:      m,
	}
}

// HandleCallback exchanges the provider's authorization code with the
// identity backend and relays the outcome to the window that opened the popup.
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	raw := c.Param("provider")
	provider := auth.SocialProvider(raw)
	if !provider.Valid() {
		h.metrics.Callback(invalidProviderLabel, strconv.Itoa(http.StatusBadRequest))
		c.String(http.StatusBadRequest, "Invalid OAuth provider")
		return
	}

	code := c.Query("code")
	// The query is only a fallback for hosts without a configured backend.
	baseURL := h.apiBaseURL
	if baseURL == "" {
		baseURL = c.Query("apiBaseUrl")
	}

	switch {
	case code == "":
		h.relay(c, provider, http.StatusBadRequest, map[string]string{"error": "Missing code"})
		return
	case baseURL == "":
		h.relay(c, provider, http.StatusBadRequest, map[string]string{"error": "Missing apiBaseUrl"})
		return
	}

	exchangeURL := cleanURL(strings.TrimRight(baseURL, "/") + "/" + strings.Trim(h.exchangePath, "/") + "/" + string(provider))
	res, err := h.api.Send(c.Request.Context(), http.MethodPost, exchangeURL, map[string]string{"code": code}, nil)
	if err == nil && !json.Valid(res.Body) {
		err = errInvalidJSON{status: res.Status}
	}
	if err != nil {
		h.logger.Error("oauth callback failed",
			zap.String("provider", string(provider)),
			zap.String("url", exchangeURL),
			zap.Error(err),
		)
		h.relay(c, provider, http.StatusInternalServerError, map[string]string{"error": "OAuth callback failed"})
		return
	}

	h.relay(c, provider, http.StatusOK, json.RawMessage(res.Body))
}

func (h *CallbackHandler) relay(c *gin.Context, provider auth.SocialProvider, status int, payload interface{}) {
	h.metrics.Callback(string(provider), strconv.Itoa(status))

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := relayPage.Execute(c.Writer, payload); err != nil {
		h.logger.Error("failed to render relay page", zap.Error(err))
	}
}

type errInvalidJSON struct{ status int }

func (e errInvalidJSON) Error() string {
	return "identity backend returned a non-JSON body (status " + strconv.Itoa(e.status) + ")"
}
