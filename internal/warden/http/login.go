package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/identity"
	"github.com/aussiebroadwan/warden/internal/warden/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// LoginHandler serves POST /v1/login. Client identity is attached from the
// resolver cache only; a login never waits on a strategy.
type LoginHandler struct {
	AuthService *service.AuthenticationService
	Resolver    *identity.Resolver
}

// ServeHTTP godoc
//
//	@Summary		Password Login
//	@Description	Checks a username and password against the account store.
//	@Description	Unknown usernames and wrong passwords get the same answer. After too many failures the account is locked and every attempt is rejected until the lock expires.
//	@Tags			Authentication
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			username		formData	string	true	"Account username (case sensitive)"
//	@Param			password		formData	string	true	"Account password"
//	@Param			X-Session-ID	header		string	false	"Session whose resolved identity is recorded with the attempt"
//	@Success		200				{object}	authsdk.LoginResponse	"Login succeeded"
//	@Failure		400				{object}	authsdk.ErrorResponse	"Missing username or password"
//	@Failure		401				{object}	authsdk.ErrorResponse	"Invalid credentials"
//	@Failure		415				{object}	authsdk.ErrorResponse	"Body is not form encoded"
//	@Failure		423				{object}	authsdk.ErrorResponse	"Account locked"
//	@Failure		429				{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		503				{object}	authsdk.ErrorResponse	"Account store unavailable"
//	@Header			423				{integer}	Retry-After				"Seconds until the lock expires"
//	@Router			/v1/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	ctx := r.Context()
	if ci, ok := h.clientIdentity(r); ok {
		ctx = identity.WithContext(ctx, ci)
		ctx = slogx.With(ctx, "client_address", ci.Address, "client_source", ci.Source)
	}

	res, err := h.AuthService.Authenticate(ctx, username, password)
	if err != nil {
		authsdk.ErrStorageUnavailable.WriteError(w)
		return
	}

	switch res.Reason {
	case domain.ReasonNone:
		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{Success: true})
	case domain.ReasonAccountLocked:
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
		authsdk.ErrAccountLocked.WriteError(w)
	case domain.ReasonStorageUnavailable:
		authsdk.ErrStorageUnavailable.WriteError(w)
	default:
		authsdk.ErrInvalidCredentials.WriteError(w)
	}
}

// clientIdentity prefers whatever the resolver already knows about the
// session and falls back to the transport peer.
func (h *LoginHandler) clientIdentity(r *http.Request) (domain.ClientIdentity, bool) {
	if h.Resolver != nil {
		if ci, ok := h.Resolver.Peek(httpx.SessionIDFromContext(r.Context())); ok {
			return ci, true
		}
	}

	addr, err := identity.Normalize(r.RemoteAddr)
	if err != nil {
		return domain.ClientIdentity{}, false
	}
	return domain.ClientIdentity{
		Address:    addr,
		Source:     domain.SourcePeerAddress,
		Confidence: domain.ConfidenceOf(domain.SourcePeerAddress),
		ResolvedAt: time.Now().UTC(),
	}, true
}

// retryAfterSeconds rounds up so clients never retry a moment too early.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}
