package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const dnsMessageContentType = "application/dns-message"

// DoHClient sends DNS queries as RFC 8484 DNS-over-HTTPS POST requests.
type DoHClient struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewDoHClient returns a DoHClient with a fresh *http.Client and the
// package's default timeout.
func NewDoHClient() *DoHClient {
	return &DoHClient{
		HTTPClient: &http.Client{},
		Timeout:    3 * time.Second,
	}
}

// Query POSTs query to url as a DNS-over-HTTPS request and returns the raw
// response message bytes. host, when non-empty, overrides the HTTP Host
// header — useful when url targets an IP literal directly but the server
// selects its config by Host. The TLS SNI and certificate check still use
// the host in url.
func (c *DoHClient) Query(ctx context.Context, url, host string, query []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("build doh request to %s: %w", url, err)
	}
	req.Header.Set("Content-Type", dnsMessageContentType)
	req.Header.Set("Accept", dnsMessageContentType)
	if host != "" {
		req.Host = host
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doh request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh upstream %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 65535))
	if err != nil {
		return nil, fmt.Errorf("read doh response from %s: %w", url, err)
	}
	return body, nil
}

func (c *DoHClient) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 3 * time.Second
	}
	return c.Timeout
}
