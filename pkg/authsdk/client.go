package authsdk

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// SessionHeader carries the session id between the client and the service.
const SessionHeader = "X-Session-ID"

// SDKClient is a client for the warden authentication service. It is safe for
// concurrent use.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	mu        sync.Mutex
	sessionID string
}

// NewSDKClient creates a new client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SessionID returns the session id in use, empty until the service issued one.
func (c *SDKClient) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSessionID pins the client to an existing session.
func (c *SDKClient) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}
