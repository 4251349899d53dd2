package anomaly

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client requests anomaly scoring for recorded transactions.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	dialer := &net.Dialer{Timeout: timeout}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				MaxIdleConnsPerHost:   4,
			},
		},
	}
}

// AnalyzeTransaction asks the scoring service to analyze a completed transaction. Any
// non-2xx response is an error.
func (c *Client) AnalyzeTransaction(ctx context.Context, userID, transactionID string) error {
	endpoint := c.baseURL + "/api/analyze-transaction-complete/" +
		url.PathEscape(userID) + "/" + url.PathEscape(transactionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("analyze transaction: unexpected status %d", resp.StatusCode)
	}
	return nil
}
