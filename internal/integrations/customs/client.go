package customs

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
)

// ErrRateLimited means the broker refused the request for quota reasons; the check is postponed
// rather than counted as a failure.
var ErrRateLimited = errors.New("customs broker rate limit (429)")

type ClearanceQuery struct {
	TrackingNumber     string
	DestinationCountry string
	DeclaredValue      models.Money
}

// ClearanceResult is the broker's view of one clearance. An empty Status means the broker
// answered with something we could not map.
type ClearanceResult struct {
	Status    models.CustomsStatus
	StatusRaw string
	Fees      *models.Money
	Reason    *string
	UpdatedAt time.Time
}

type Client interface {
	GetClearanceStatus(ctx context.Context, q ClearanceQuery) (ClearanceResult, error)
}

// NormalizeStatus maps broker vocabulary onto customs statuses.
func NormalizeStatus(raw string) models.CustomsStatus {
	low := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case low == "":
		return ""
	case strings.Contains(low, "info") || strings.Contains(low, "document"):
		return models.CustomsRequiresAdditionalInfo
	case strings.Contains(low, "reject") || strings.Contains(low, "refus"):
		return models.CustomsRejected
	case strings.Contains(low, "detain") || strings.Contains(low, "hold") || strings.Contains(low, "retenid"):
		return models.CustomsDetained
	case strings.Contains(low, "clear") || strings.Contains(low, "releas") || strings.Contains(low, "liberad"):
		return models.CustomsCleared
	case strings.Contains(low, "process") || strings.Contains(low, "inspect") || strings.Contains(low, "review"):
		return models.CustomsInProcess
	}
	return ""
}
