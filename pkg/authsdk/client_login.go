package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Login runs one password attempt. A nil error means the credentials were
// accepted; rejections come back as *APIError.
func (c *SDKClient) Login(ctx context.Context, username, password string) error {
	resp, err := c.doForm(ctx, http.MethodPost, "/v1/login", url.Values{
		"username": {username},
		"password": {password},
	}, nil)
	if err != nil {
		return err
	}

	var out LoginResponse
	return decodeJSON(resp, &out, http.StatusOK)
}
