package shipping

import (
	"context"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/google/uuid"
)

// KYCSummary adds the lazily evaluated expiry predicates to a validation.
type KYCSummary struct {
	*models.KYCValidation
	ValidForInternationalShipping bool `json:"valid_for_international_shipping"`
	RequiresRenewal               bool `json:"requires_renewal"`
}

func (s *Service) summarize(k *models.KYCValidation) KYCSummary {
	now := s.now()
	return KYCSummary{
		KYCValidation:                 k,
		ValidForInternationalShipping: k.IsValidForInternationalShipping(now),
		RequiresRenewal:               k.RequiresRenewal(models.DefaultRenewalLeadDays, now),
	}
}

func (s *Service) StartKYCValidation(ctx context.Context, customerID, provider string) (KYCSummary, error) {
	k, err := models.NewKYCValidation(customerID, provider, s.now())
	if err != nil {
		return KYCSummary{}, err
	}
	if err := s.repo.CreateKYC(ctx, k); err != nil {
		return KYCSummary{}, err
	}
	return s.summarize(k), nil
}

func (s *Service) GetKYC(ctx context.Context, id uuid.UUID) (KYCSummary, error) {
	k, err := s.repo.GetKYC(ctx, id)
	if err != nil {
		return KYCSummary{}, err
	}
	return s.summarize(k), nil
}

func (s *Service) ListCustomerKYC(ctx context.Context, customerID string) ([]KYCSummary, error) {
	if customerID == "" {
		return nil, models.Invalid("customer_id is required")
	}
	ks, err := s.repo.ListKYCByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := make([]KYCSummary, 0, len(ks))
	for _, k := range ks {
		out = append(out, s.summarize(k))
	}
	return out, nil
}

func (s *Service) SubmitKYCDocument(ctx context.Context, id uuid.UUID, docType, url string) (KYCSummary, error) {
	k, err := s.mutateKYC(ctx, id, "kyc_submit_document", func(k *models.KYCValidation, now time.Time) error {
		return k.SubmitDocument(docType, url, now)
	})
	if err != nil {
		return KYCSummary{}, err
	}
	return s.summarize(k), nil
}

type ApproveKYCInput struct {
	ApprovedBy   string
	Score        int
	RiskLevel    models.RiskLevel
	ExpiryMonths int
}

func (s *Service) ApproveKYC(ctx context.Context, id uuid.UUID, in ApproveKYCInput) (KYCSummary, error) {
	k, err := s.mutateKYC(ctx, id, "kyc_approve", func(k *models.KYCValidation, now time.Time) error {
		return k.Approve(in.ApprovedBy, in.Score, in.RiskLevel, in.ExpiryMonths, now)
	})
	if err != nil {
		return KYCSummary{}, err
	}
	s.metrics.IncKYCDecision("approved")
	return s.summarize(k), nil
}

func (s *Service) RejectKYC(ctx context.Context, id uuid.UUID, reasons []string) (KYCSummary, error) {
	k, err := s.mutateKYC(ctx, id, "kyc_reject", func(k *models.KYCValidation, now time.Time) error {
		return k.Reject(reasons, now)
	})
	if err != nil {
		return KYCSummary{}, err
	}
	s.metrics.IncKYCDecision("rejected")
	return s.summarize(k), nil
}
