// Package lemonsqueezy creates hosted checkouts with the Lemon Squeezy SDK.
package lemonsqueezy

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	ls "github.com/NdoleStudio/lemonsqueezy-go"
	"github.com/sealdrop-api/internal/config"
	"github.com/sealdrop-api/internal/domain"
)

// CheckoutRequest describes one hosted checkout for a plan variant.
type CheckoutRequest struct {
	VariantID      string
	OrganizationID string
	UserID         string
	RedirectURL    string
}

type Client struct {
	api     *ls.Client
	apiKey  string
	storeID string
}

func NewClient(cfg *config.Config) *Client {
	opts := []ls.Option{
		ls.WithAPIKey(cfg.LemonSqueezyAPIKey),
		ls.WithHTTPClient(&http.Client{Timeout: 15 * time.Second}),
	}
	if cfg.LemonSqueezyBaseURL != "" {
		opts = append(opts, ls.WithBaseURL(strings.TrimRight(cfg.LemonSqueezyBaseURL, "/")))
	}
	return &Client{
		api:     ls.New(opts...),
		apiKey:  cfg.LemonSqueezyAPIKey,
		storeID: cfg.LemonSqueezyStoreID,
	}
}

// CreateCheckout returns the URL of a new hosted checkout. The organization and
// user ids travel as custom data so a webhook can reconcile the purchase.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if c.apiKey == "" || c.storeID == "" {
		return "", fmt.Errorf("payment provider is not configured: %w", domain.ErrUnavailable)
	}
	storeID, err := strconv.Atoi(c.storeID)
	if err != nil {
		return "", fmt.Errorf("store id %q: %w", c.storeID, domain.ErrUnavailable)
	}
	variantID, err := strconv.Atoi(req.VariantID)
	if err != nil {
		return "", fmt.Errorf("variant id %q: %w", req.VariantID, domain.ErrUnavailable)
	}

	checkout, resp, err := c.api.Checkouts.Create(ctx, storeID, variantID, &ls.CheckoutCreateAttributes{
		ProductOptions: ls.CheckoutCreateProductOptions{
			RedirectURL: req.RedirectURL,
		},
		CheckoutData: ls.CheckoutCreateData{
			Custom: map[string]any{
				"organization_id": req.OrganizationID,
				"user_id":         req.UserID,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create checkout: %w", err)
	}
	if resp != nil && resp.HTTPResponse != nil && resp.HTTPResponse.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("create checkout: status %d", resp.HTTPResponse.StatusCode)
	}
	if checkout == nil || checkout.Data.Attributes.URL == "" {
		return "", fmt.Errorf("create checkout: response has no url")
	}
	return checkout.Data.Attributes.URL, nil
}
