// Package httpclient builds the outbound HTTP clients used to reach the knowledge and
// rerank services.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// sharedTransport is reused by every pooled client so that concurrent per-dataset
// requests to the same knowledge service reuse connections.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     120 * time.Second,
}

// NewPooledClient creates a traced http.Client that shares the package connection pool.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(sharedTransport),
	}
}
