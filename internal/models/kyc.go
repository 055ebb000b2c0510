package models

import (
	"time"

	"github.com/google/uuid"
)

type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "PENDING"
	KYCStatusInReview KYCStatus = "IN_REVIEW"
	KYCStatusApproved KYCStatus = "APPROVED"
	KYCStatusRejected KYCStatus = "REJECTED"
)

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh:
		return true
	}
	return false
}

const (
	DefaultKYCExpiryMonths = 12
	DefaultRenewalLeadDays = 30
)

// KYCValidation is the identity check gating international shipping for one customer.
// It lives independently of any shipment until attached.
type KYCValidation struct {
	ID                 uuid.UUID         `json:"id"`
	CustomerID         string            `json:"customer_id"`
	Provider           string            `json:"provider"`
	Status             KYCStatus         `json:"status"`
	SubmittedDocuments map[string]string `json:"submitted_documents"`
	ValidationScore    *int              `json:"validation_score,omitempty"`
	RiskLevel          RiskLevel         `json:"risk_level,omitempty"`
	ApprovedBy         *string           `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time        `json:"approved_at,omitempty"`
	ExpiryDate         *time.Time        `json:"expiry_date,omitempty"`
	RejectionReasons   []string          `json:"rejection_reasons,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func NewKYCValidation(customerID, provider string, now time.Time) (*KYCValidation, error) {
	if customerID == "" {
		return nil, Invalid("customer_id is required")
	}
	if provider == "" {
		return nil, Invalid("provider is required")
	}
	return &KYCValidation{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		Provider:           provider,
		Status:             KYCStatusPending,
		SubmittedDocuments: map[string]string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (k *KYCValidation) SubmitDocument(docType, url string, now time.Time) error {
	if k.Status == KYCStatusApproved || k.Status == KYCStatusRejected {
		return InvalidState("cannot submit documents to a KYC validation in status %s", k.Status)
	}
	if docType == "" || url == "" {
		return Invalid("document type and url are required")
	}
	if k.SubmittedDocuments == nil {
		k.SubmittedDocuments = map[string]string{}
	}
	k.SubmittedDocuments[docType] = url
	if k.Status == KYCStatusPending {
		k.Status = KYCStatusInReview
	}
	k.UpdatedAt = now
	return nil
}

// Approve is only allowed from IN_REVIEW. expiryMonths <= 0 means the 12 month default.
func (k *KYCValidation) Approve(approvedBy string, score int, risk RiskLevel, expiryMonths int, now time.Time) error {
	if k.Status != KYCStatusInReview {
		return InvalidState("KYC validation must be IN_REVIEW to approve, current status %s", k.Status)
	}
	if approvedBy == "" {
		return Invalid("approved_by is required")
	}
	if score < 0 || score > 100 {
		return Invalid("validation score must be between 0 and 100, got %d", score)
	}
	if !risk.Valid() {
		return Invalid("risk level must be one of low, medium, high, got %q", risk)
	}
	if expiryMonths <= 0 {
		expiryMonths = DefaultKYCExpiryMonths
	}

	expiry := now.AddDate(0, expiryMonths, 0)
	k.Status = KYCStatusApproved
	k.ValidationScore = &score
	k.RiskLevel = risk
	k.ApprovedBy = &approvedBy
	k.ApprovedAt = &now
	k.ExpiryDate = &expiry
	k.UpdatedAt = now
	return nil
}

func (k *KYCValidation) Reject(reasons []string, now time.Time) error {
	if k.Status != KYCStatusInReview && k.Status != KYCStatusPending {
		return InvalidState("KYC validation in status %s cannot be rejected", k.Status)
	}
	if len(reasons) == 0 {
		return Invalid("at least one rejection reason is required")
	}
	k.Status = KYCStatusRejected
	k.RejectionReasons = append([]string(nil), reasons...)
	k.UpdatedAt = now
	return nil
}

func (k *KYCValidation) IsValidForInternationalShipping(now time.Time) bool {
	return k.Status == KYCStatusApproved && k.ExpiryDate != nil && k.ExpiryDate.After(now)
}

func (k *KYCValidation) RequiresRenewal(daysBeforeExpiry int, now time.Time) bool {
	if k.ExpiryDate == nil {
		return false
	}
	return !now.Before(k.ExpiryDate.AddDate(0, 0, -daysBeforeExpiry))
}
