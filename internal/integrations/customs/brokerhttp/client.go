package brokerhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/CustomsBox/internal/integrations/customs"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9100"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type respFees struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type respBody struct {
	TrackingNumber string    `json:"tracking_number"`
	Status         string    `json:"status"`
	StatusText     string    `json:"status_text"`
	Fees           *respFees `json:"fees,omitempty"`
	Reason         *string   `json:"reason,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (c *Client) GetClearanceStatus(ctx context.Context, q customs.ClearanceQuery) (customs.ClearanceResult, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return customs.ClearanceResult{}, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/v1/clearances/%s", url.PathEscape(q.TrackingNumber))
	qs := u.Query()
	qs.Set("country", q.DestinationCountry)
	u.RawQuery = qs.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return customs.ClearanceResult{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return customs.ClearanceResult{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return customs.ClearanceResult{}, customs.ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		return customs.ClearanceResult{}, fmt.Errorf("customs broker http %d", resp.StatusCode)
	}

	var rb respBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return customs.ClearanceResult{}, errors.Wrap(err, "decode")
	}

	raw := rb.Status
	if rb.StatusText != "" {
		raw = rb.StatusText
	}
	res := customs.ClearanceResult{
		Status:    customs.NormalizeStatus(rb.Status),
		StatusRaw: raw,
		Reason:    rb.Reason,
		UpdatedAt: rb.UpdatedAt,
	}
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = time.Now().UTC()
	}
	if rb.Fees != nil {
		amount, err := decimal.NewFromString(rb.Fees.Amount)
		if err != nil {
			return customs.ClearanceResult{}, errors.Wrap(err, "decode fees")
		}
		fees, err := models.NewMoney(amount, models.Currency(rb.Fees.Currency))
		if err != nil {
			return customs.ClearanceResult{}, errors.Wrap(err, "decode fees")
		}
		res.Fees = &fees
	}
	return res, nil
}
