package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/internal/localdb"
)

// RemoteOffer is one entry of the catalog feed. Every field may be missing.
type RemoteOffer struct {
	ID                   *string  `json:"id"`
	PlaceName            *string  `json:"placeName"`
	OfferDescription     *string  `json:"offerDescription"`
	ShopImage            *string  `json:"shopImage"`
	RecommendationReason *string  `json:"recommendationReason"`
	Latitude             *float64 `json:"latitude"`
	Longitude            *float64 `json:"longitude"`
	Distance             *float64 `json:"distance"`
	Featured             bool     `json:"featured"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
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
			},
		},
		logger: logger,
	}
}

// FetchOffers downloads the catalog and drops entries lacking an id, a place name or
// coordinates.
func (c *Client) FetchOffers(ctx context.Context) ([]localdb.Offer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/offers", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch offers: unexpected status %d", resp.StatusCode)
	}

	var remote []RemoteOffer
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}

	offers := make([]localdb.Offer, 0, len(remote))
	for i, r := range remote {
		offer, ok := r.toOffer()
		if !ok {
			c.logger.WithField("index", i).Warn("CatalogClient.FetchOffers.skipping incomplete offer")
			continue
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

func (r RemoteOffer) toOffer() (localdb.Offer, bool) {
	if r.ID == nil || *r.ID == "" || r.PlaceName == nil || r.Latitude == nil || r.Longitude == nil {
		return localdb.Offer{}, false
	}
	return localdb.Offer{
		ID:                   *r.ID,
		PlaceName:            *r.PlaceName,
		Description:          deref(r.OfferDescription),
		ShopImage:            deref(r.ShopImage),
		RecommendationReason: deref(r.RecommendationReason),
		Latitude:             *r.Latitude,
		Longitude:            *r.Longitude,
		Distance:             derefFloat(r.Distance),
		Featured:             r.Featured,
	}, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
