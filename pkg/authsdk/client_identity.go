package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// ResolveIdentity asks the service who this client is. browserAddress is an
// optional address the caller observed itself. The session id issued by the
// service is remembered for later calls.
func (c *SDKClient) ResolveIdentity(ctx context.Context, browserAddress string) (*IdentityResponse, error) {
	form := url.Values{}
	if browserAddress != "" {
		form.Set("browser_address", browserAddress)
	}

	resp, err := c.doForm(ctx, http.MethodPost, "/v1/identity", form, nil)
	if err != nil {
		return nil, err
	}

	var out IdentityResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if out.SessionID != "" {
		c.SetSessionID(out.SessionID)
	}
	return &out, nil
}

// SetOverride pins the current session to address. operatorToken is the
// service's configured operator bearer token.
func (c *SDKClient) SetOverride(ctx context.Context, operatorToken, address string) (*IdentityResponse, error) {
	resp, err := c.doForm(ctx, http.MethodPut, "/v1/identity/override",
		url.Values{"address": {address}},
		map[string]string{"Authorization": "Bearer " + operatorToken},
	)
	if err != nil {
		return nil, err
	}

	var out IdentityResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearOverride releases the override of the current session.
func (c *SDKClient) ClearOverride(ctx context.Context, operatorToken string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/identity/override", nil,
		map[string]string{"Authorization": "Bearer " + operatorToken},
	)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
