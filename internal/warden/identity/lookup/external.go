package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/identity"
)

// DefaultExternalTimeout caps a single lookup when no client is supplied.
const DefaultExternalTimeout = 5 * time.Second

// maxBody bounds how much of a lookup response is read.
const maxBody = 4 << 10

// ExternalHTTP asks a JSON "what is my IP" service. ipify answers
// {"ip":"..."}, httpbin answers {"origin":"a, b"}; with Field empty both keys
// are tried. Note it reports the address this host is seen from.
type ExternalHTTP struct {
	URL    string
	Field  string
	Client *http.Client
}

// NewExternalHTTP returns a lookup against url with a bounded client.
func NewExternalHTTP(url string, timeout time.Duration) *ExternalHTTP {
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}
	return &ExternalHTTP{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (e *ExternalHTTP) Source() domain.IdentitySource { return domain.SourceExternalLookup }

func (e *ExternalHTTP) Lookup(ctx context.Context, _ identity.Request) (string, error) {
	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultExternalTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", e.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("lookup %s: unexpected status %d", e.URL, resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&payload); err != nil {
		return "", fmt.Errorf("lookup %s: decode: %w", e.URL, err)
	}

	fields := []string{"ip", "origin"}
	if e.Field != "" {
		fields = []string{e.Field}
	}
	for _, f := range fields {
		if v, ok := payload[f].(string); ok && v != "" {
			first, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(first), nil
		}
	}
	return "", fmt.Errorf("lookup %s: %w", e.URL, identity.ErrNoAddress)
}
