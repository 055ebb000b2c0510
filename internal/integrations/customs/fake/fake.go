package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/BearBump/CustomsBox/internal/integrations/customs"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/shopspring/decimal"
)

var feeRate = decimal.RequireFromString("0.05")

// Client is a deterministic stand-in for the customs broker: the outcome depends only on the
// tracking number, so the same clearance always ends the same way.
type Client struct {
	now func() time.Time
}

func New() *Client { return &Client{now: time.Now} }

func (c *Client) GetClearanceStatus(ctx context.Context, q customs.ClearanceQuery) (customs.ClearanceResult, error) {
	if err := ctx.Err(); err != nil {
		return customs.ClearanceResult{}, err
	}
	now := c.now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(q.DestinationCountry))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(q.TrackingNumber))
	v := h.Sum32() % 10

	res := customs.ClearanceResult{UpdatedAt: now}
	switch {
	case v == 0:
		res.Status = models.CustomsDetained
		res.Reason = ptr("random inspection")
	case v == 1:
		res.Status = models.CustomsRequiresAdditionalInfo
		res.Reason = ptr("commercial invoice must list unit prices")
	case v <= 4:
		res.Status = models.CustomsInProcess
	default:
		res.Status = models.CustomsCleared
		fees, err := q.DeclaredValue.MulRate(feeRate)
		if err != nil {
			return customs.ClearanceResult{}, err
		}
		res.Fees = &fees
	}
	res.StatusRaw = string(res.Status)
	return res, nil
}

func ptr(s string) *string { return &s }
