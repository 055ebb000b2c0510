package shipping_api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/services/shipping"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Service interface {
	CreateInternationalShipment(ctx context.Context, in models.ShipmentInput) (*models.InternationalShipment, error)
	GetShipment(ctx context.Context, id uuid.UUID) (*models.InternationalShipment, error)
	ListShipments(ctx context.Context, f models.ShipmentFilter) ([]*models.InternationalShipment, error)
	AttachKYCValidation(ctx context.Context, shipmentID, kycID uuid.UUID) (*models.InternationalShipment, error)
	CreateCustomsDeclaration(ctx context.Context, shipmentID uuid.UUID, in models.DeclarationInput) (*models.CustomsDeclaration, error)
	AddRequiredDocument(ctx context.Context, shipmentID uuid.UUID, in shipping.AddDocumentInput) (*models.InternationalDocument, error)
	ValidateDocument(ctx context.Context, shipmentID, documentID uuid.UUID, isValid bool, validatedBy, notes string) (*models.InternationalDocument, error)
	AddDocumentTranslation(ctx context.Context, shipmentID, documentID uuid.UUID, url, language string) (*models.InternationalDocument, error)
	RevalidateCompliance(ctx context.Context, shipmentID uuid.UUID) (*models.InternationalShipment, error)
	UpdateDeclaredValue(ctx context.Context, shipmentID uuid.UUID, v models.Money) (*models.InternationalShipment, error)
	CheckShipmentReadiness(ctx context.Context, shipmentID uuid.UUID) (models.ReadinessReport, error)
	CalculateInternationalCosts(ctx context.Context, shipmentID uuid.UUID) (models.CostBreakdown, error)
	StartCustomsClearance(ctx context.Context, shipmentID uuid.UUID) (bool, error)
	DetainAtCustoms(ctx context.Context, shipmentID uuid.UUID, reason string) (*models.InternationalShipment, error)

	StartKYCValidation(ctx context.Context, customerID, provider string) (shipping.KYCSummary, error)
	GetKYC(ctx context.Context, id uuid.UUID) (shipping.KYCSummary, error)
	ListCustomerKYC(ctx context.Context, customerID string) ([]shipping.KYCSummary, error)
	SubmitKYCDocument(ctx context.Context, id uuid.UUID, docType, url string) (shipping.KYCSummary, error)
	ApproveKYC(ctx context.Context, id uuid.UUID, in shipping.ApproveKYCInput) (shipping.KYCSummary, error)
	RejectKYC(ctx context.Context, id uuid.UUID, reasons []string) (shipping.KYCSummary, error)

	ListRestrictions(country, category string) []models.CountryRestriction
}

type ShippingAPI struct {
	svc       Service
	validator *requestValidator
}

func New(svc Service) *ShippingAPI {
	return &ShippingAPI{svc: svc, validator: newRequestValidator()}
}

// Routes mounts the /v1 surface on r.
func (a *ShippingAPI) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Route("/shipments", func(r chi.Router) {
			r.Post("/", a.createShipment)
			r.Get("/", a.listShipments)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.getShipment)
				r.Post("/kyc", a.attachKYC)
				r.Post("/declaration", a.createDeclaration)
				r.Post("/documents", a.addDocument)
				r.Post("/documents/{docID}/validation", a.validateDocument)
				r.Post("/documents/{docID}/translation", a.addTranslation)
				r.Put("/declared-value", a.updateDeclaredValue)
				r.Post("/compliance", a.revalidateCompliance)
				r.Get("/readiness", a.readiness)
				r.Post("/costs", a.costs)
				r.Post("/clearance", a.startClearance)
				r.Post("/clearance/detention", a.detain)
			})
		})
		r.Route("/kyc", func(r chi.Router) {
			r.Post("/", a.startKYC)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.getKYC)
				r.Post("/documents", a.submitKYCDocument)
				r.Post("/approval", a.approveKYC)
				r.Post("/rejection", a.rejectKYC)
			})
		})
		r.Get("/customers/{customerID}/kyc", a.listCustomerKYC)
		r.Get("/restrictions", a.listRestrictions)
	})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondValidation(w, []FieldError{{Field: name, Message: "must be a valid UUID"}})
		return uuid.Nil, false
	}
	return id, true
}

func (a *ShippingAPI) createShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	value, err := req.DeclaredValue.toMoney()
	if err != nil {
		respondError(w, r, err)
		return
	}
	sh, err := a.svc.CreateInternationalShipment(r.Context(), models.ShipmentInput{
		GuideID:            req.GuideID,
		CustomerID:         req.CustomerID,
		DestinationCountry: req.DestinationCountry,
		ProductCategory:    req.ProductCategory,
		DeclaredValue:      value,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, sh)
}

func (a *ShippingAPI) listShipments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.ShipmentFilter{
		CustomerID:         q.Get("customer_id"),
		GuideID:            q.Get("guide_id"),
		DestinationCountry: q.Get("destination_country"),
		CustomsStatus:      models.CustomsStatus(q.Get("customs_status")),
	}
	var fields []FieldError
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields = append(fields, FieldError{Field: "limit", Message: "must be an integer"})
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields = append(fields, FieldError{Field: "offset", Message: "must be an integer"})
		}
		f.Offset = n
	}
	if len(fields) > 0 {
		respondValidation(w, fields)
		return
	}

	items, err := a.svc.ListShipments(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, items)
}

func (a *ShippingAPI) getShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sh, err := a.svc.GetShipment(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, sh)
}

func (a *ShippingAPI) attachKYC(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req attachKYCRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	sh, err := a.svc.AttachKYCValidation(r.Context(), id, uuid.MustParse(req.KYCValidationID))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, sh)
}

func (a *ShippingAPI) createDeclaration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req createDeclarationRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	in := models.DeclarationInput{
		ProductDescription: req.ProductDescription,
		ProductCategory:    req.ProductCategory,
		Quantity:           req.Quantity,
		WeightKg:           req.WeightKg,
		CountryOfOrigin:    req.CountryOfOrigin,
		Purpose:            models.DeclarationPurpose(req.Purpose),
	}
	// без declared_value берём стоимость из отправления
	if req.DeclaredValue != nil {
		v, err := req.DeclaredValue.toMoney()
		if err != nil {
			respondError(w, r, err)
			return
		}
		in.DeclaredValue = v
	}
	decl, err := a.svc.CreateCustomsDeclaration(r.Context(), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, decl)
}

func (a *ShippingAPI) addDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req addDocumentRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	doc, err := a.svc.AddRequiredDocument(r.Context(), id, shipping.AddDocumentInput{
		DocumentType: models.DocumentType(req.DocumentType),
		FileURL:      req.FileURL,
		Metadata:     req.Metadata,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, doc)
}

func (a *ShippingAPI) validateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	docID, ok := pathUUID(w, r, "docID")
	if !ok {
		return
	}
	var req validateDocumentRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	doc, err := a.svc.ValidateDocument(r.Context(), id, docID, *req.IsValid, req.ValidatedBy, req.Notes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, doc)
}

func (a *ShippingAPI) addTranslation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	docID, ok := pathUUID(w, r, "docID")
	if !ok {
		return
	}
	var req translationRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	doc, err := a.svc.AddDocumentTranslation(r.Context(), id, docID, req.TranslatedFileURL, req.Language)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, doc)
}

func (a *ShippingAPI) updateDeclaredValue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req moneyRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	v, err := req.toMoney()
	if err != nil {
		respondError(w, r, err)
		return
	}
	sh, err := a.svc.UpdateDeclaredValue(r.Context(), id, v)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, sh)
}

func (a *ShippingAPI) revalidateCompliance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sh, err := a.svc.RevalidateCompliance(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, sh)
}

func (a *ShippingAPI) readiness(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rep, err := a.svc.CheckShipmentReadiness(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, rep)
}

func (a *ShippingAPI) costs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	out, err := a.svc.CalculateInternationalCosts(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, out)
}

// startClearance answers 202 when clearance began and 200 with the readiness report when the
// shipment is not ready yet.
func (a *ShippingAPI) startClearance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	started, err := a.svc.StartCustomsClearance(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !started {
		rep, err := a.svc.CheckShipmentReadiness(r.Context(), id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondSuccess(w, http.StatusOK, clearanceResponse{Started: false, Readiness: &rep})
		return
	}
	sh, err := a.svc.GetShipment(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusAccepted, clearanceResponse{Started: true, Shipment: sh})
}

func (a *ShippingAPI) detain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req detainRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	sh, err := a.svc.DetainAtCustoms(r.Context(), id, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, sh)
}

func (a *ShippingAPI) startKYC(w http.ResponseWriter, r *http.Request) {
	var req startKYCRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	k, err := a.svc.StartKYCValidation(r.Context(), req.CustomerID, req.Provider)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, k)
}

func (a *ShippingAPI) getKYC(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	k, err := a.svc.GetKYC(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, k)
}

func (a *ShippingAPI) submitKYCDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req kycDocumentRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	k, err := a.svc.SubmitKYCDocument(r.Context(), id, req.DocumentType, req.URL)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, k)
}

func (a *ShippingAPI) approveKYC(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req approveKYCRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	k, err := a.svc.ApproveKYC(r.Context(), id, shipping.ApproveKYCInput{
		ApprovedBy:   req.ApprovedBy,
		Score:        *req.Score,
		RiskLevel:    models.RiskLevel(req.RiskLevel),
		ExpiryMonths: req.ExpiryMonths,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, k)
}

func (a *ShippingAPI) rejectKYC(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req rejectKYCRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	k, err := a.svc.RejectKYC(r.Context(), id, req.Reasons)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, k)
}

func (a *ShippingAPI) listCustomerKYC(w http.ResponseWriter, r *http.Request) {
	ks, err := a.svc.ListCustomerKYC(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, ks)
}

func (a *ShippingAPI) listRestrictions(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if len(country) != 2 {
		respondValidation(w, []FieldError{{Field: "country", Message: "must be exactly 2 characters"}})
		return
	}
	respondSuccess(w, http.StatusOK, a.svc.ListRestrictions(country, r.URL.Query().Get("category")))
}
