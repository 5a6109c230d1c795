package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/warden/internal/warden/identity"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// OverrideHandler lets an operator pin or release the identity of a session,
// named by the X-Session-ID header.
type OverrideHandler struct {
	Resolver *identity.Resolver
}

// HandleSet godoc
//
//	@Summary		Set Identity Override
//	@Description	Pins the identity of a session to an operator supplied address. It takes precedence over every strategy.
//	@Tags			Identity
//	@Security		OperatorToken
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			X-Session-ID	header		string	true	"Session to pin"
//	@Param			address			formData	string	true	"IPv4 or IPv6 address"
//	@Success		200				{object}	authsdk.IdentityResponse	"Override applied"
//	@Failure		400				{object}	authsdk.ErrorResponse		"Missing session or unusable address"
//	@Failure		401				{object}	authsdk.ErrorResponse		"Invalid or missing operator token"
//	@Failure		404				{object}	authsdk.ErrorResponse		"Overrides are disabled"
//	@Router			/v1/identity/override [put].
func (h *OverrideHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	sid, ok := requireSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	ci, err := h.Resolver.SetOverride(sid, r.PostForm.Get("address"))
	if errors.Is(err, identity.ErrInvalidAddress) {
		authsdk.ErrInvalidAddress.WriteError(w)
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, err.Error())
		return
	}

	slogx.FromContext(r.Context()).Info("identity override set", "session_id", sid, "address", ci.Address)
	httpx.WriteJSON(w, http.StatusOK, newIdentityResponse(sid, ci))
}

// HandleClear godoc
//
//	@Summary		Clear Identity Override
//	@Description	Removes the override of a session. The next resolve runs the strategies again.
//	@Tags			Identity
//	@Security		OperatorToken
//	@Produce		json
//	@Param			X-Session-ID	header	string	true	"Session to release"
//	@Success		204				"Override removed"
//	@Failure		400				{object}	authsdk.ErrorResponse	"Missing session"
//	@Failure		401				{object}	authsdk.ErrorResponse	"Invalid or missing operator token"
//	@Failure		404				{object}	authsdk.ErrorResponse	"No override set, or overrides disabled"
//	@Router			/v1/identity/override [delete].
func (h *OverrideHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	sid, ok := requireSession(w, r)
	if !ok {
		return
	}

	if !h.Resolver.ClearOverride(sid) {
		authsdk.ErrNoOverride.WriteError(w)
		return
	}

	slogx.FromContext(r.Context()).Info("identity override cleared", "session_id", sid)
	w.WriteHeader(http.StatusNoContent)
}

func requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	sid := httpx.SessionIDFromContext(r.Context())
	if sid == "" {
		authsdk.ErrMissingSession.WriteError(w)
		return "", false
	}
	return sid, true
}
