// internal/remote/client.go
package remote

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/user/framerelay/internal/forward"
)

// Response bodies carry detection grids and base64 images, so decoding goes
// through jsoniter instead of encoding/json.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusError is a non-2xx reply from a remote service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// NewHTTPClient returns a client tuned for a small set of long-lived service
// endpoints. Per-request deadlines come from the caller's context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxConnsPerHost:     4,
			MaxIdleConnsPerHost: 4,
			MaxIdleConns:        32,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// CheckStatus converts a non-2xx response into an error. 4xx replies are
// terminal; everything else stays retryable.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return forward.Terminal(err)
	}
	return err
}
