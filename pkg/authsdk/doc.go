/*
Package authsdk provides a client SDK for the warden authentication service.

# Overview

SDKClient wraps the HTTP surface: password login, client identity resolution,
operator overrides and the health probes. The client remembers the session id
the service hands out so later calls share the same identity cache.

	client := authsdk.NewSDKClient("https://warden.internal")

	identity, err := client.ResolveIdentity(ctx, "")
	err = client.Login(ctx, "admin", password)

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeAccountLocked {
		time.Sleep(apiErr.RetryAfter)
	}

# Errors

Every non-2xx response is returned as an *APIError carrying the HTTP status,
the error code and, for locked accounts and rate limits, the Retry-After
delay. The same predefined errors are written by the service handlers so the
wire format has a single definition.
*/
package authsdk
