package messages

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventShipmentCreated      = "shipment.created"
	EventKYCAttached          = "shipment.kyc_attached"
	EventDocumentAdded        = "shipment.document_added"
	EventDeclarationCreated   = "shipment.declaration_created"
	EventComplianceEvaluated  = "shipment.compliance_evaluated"
	EventCustomsStatusChanged = "shipment.customs_status_changed"
)

// ShipmentEvent goes to shipment.events for downstream consumers such as notifications.
type ShipmentEvent struct {
	Type             string            `json:"type"`
	ShipmentID       uuid.UUID         `json:"shipment_id"`
	GuideID          string            `json:"guide_id"`
	CustomerID       string            `json:"customer_id"`
	CustomsStatus    string            `json:"customs_status"`
	ComplianceStatus string            `json:"compliance_status"`
	OccurredAt       time.Time         `json:"occurred_at"`
	Details          map[string]string `json:"details,omitempty"`
}
