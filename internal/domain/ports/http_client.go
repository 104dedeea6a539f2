package ports

import (
	"net/http"
)

// HTTPClient defines the interface for making HTTP requests. It lets gateway
// adapters be exercised in tests without a live endpoint.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
