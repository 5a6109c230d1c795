package http

import (
	"net/http"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/identity"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/idx"
)

func newIdentityResponse(sessionID string, ci domain.ClientIdentity) authsdk.IdentityResponse {
	return authsdk.IdentityResponse{
		SessionID:  sessionID,
		Address:    ci.Address,
		Source:     string(ci.Source),
		Confidence: ci.Confidence.String(),
		ResolvedAt: ci.ResolvedAt,
	}
}

// IdentityHandler serves POST /v1/identity. It runs the full strategy chain
// for the session, issuing a new session id when the client has none.
type IdentityHandler struct {
	Resolver *identity.Resolver
}

// ServeHTTP godoc
//
//	@Summary		Resolve Client Identity
//	@Description	Runs the identity strategies for the session in priority order and caches the result.
//	@Description	A session id is issued when the request carries none. When nothing usable is found a stable synthetic address is returned.
//	@Tags			Identity
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			X-Session-ID		header		string	false	"Existing session id"
//	@Param			browser_address		formData	string	false	"Address reported by the client environment"
//	@Success		200					{object}	authsdk.IdentityResponse	"Resolved identity"
//	@Failure		429					{object}	authsdk.ErrorResponse		"Rate limit exceeded"
//	@Header			200					{string}	X-Session-ID				"Session the identity belongs to"
//	@Router			/v1/identity [post].
func (h *IdentityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	sid := httpx.SessionIDFromContext(r.Context())
	if sid == "" {
		sid = idx.New().String()
	}

	ci := h.Resolver.Resolve(r.Context(), identity.Request{
		Session:         identity.Session{ID: sid},
		Header:          r.Header,
		RemoteAddr:      r.RemoteAddr,
		BrowserReported: r.PostForm.Get("browser_address"),
	})

	w.Header().Set(httpx.SessionHeader, sid)
	httpx.WriteJSON(w, http.StatusOK, newIdentityResponse(sid, ci))
}
