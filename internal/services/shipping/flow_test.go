package shipping

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/reference"
	"github.com/BearBump/CustomsBox/internal/storage/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newFlow(t *testing.T) (*Service, *memstore.Storage, *clock) {
	t.Helper()
	st := memstore.New()
	c := &clock{now: fixedNow}
	return New(st, reference.Defaults(), Options{Now: c.Now}), st, c
}

func approvedKYC(t *testing.T, svc *Service, customerID string) KYCSummary {
	t.Helper()
	ctx := context.Background()
	k, err := svc.StartKYCValidation(ctx, customerID, "onfido")
	require.NoError(t, err)
	_, err = svc.SubmitKYCDocument(ctx, k.ID, "passport", "https://files/passport.pdf")
	require.NoError(t, err)
	k, err = svc.ApproveKYC(ctx, k.ID, ApproveKYCInput{ApprovedBy: "ops", Score: 90, RiskLevel: models.RiskLevelLow})
	require.NoError(t, err)
	return k
}

func readyUSShipment(t *testing.T, svc *Service) *models.InternationalShipment {
	t.Helper()
	ctx := context.Background()

	k := approvedKYC(t, svc, "C-1")
	sh, err := svc.CreateInternationalShipment(ctx, models.ShipmentInput{
		GuideID:            "G-100",
		CustomerID:         "C-1",
		DestinationCountry: "US",
		ProductCategory:    "electronics",
		DeclaredValue:      models.MustMoney("500", models.CurrencyUSD),
	})
	require.NoError(t, err)

	_, err = svc.AttachKYCValidation(ctx, sh.ID, k.ID)
	require.NoError(t, err)
	for _, dt := range []models.DocumentType{
		models.DocumentCommercialInvoice, models.DocumentResponsibilityLetter, models.DocumentCertificateOfOrigin,
	} {
		_, err := svc.AddRequiredDocument(ctx, sh.ID, AddDocumentInput{DocumentType: dt, FileURL: "https://files/" + string(dt) + ".pdf"})
		require.NoError(t, err)
	}
	_, err = svc.CreateCustomsDeclaration(ctx, sh.ID, models.DeclarationInput{
		ProductDescription: "Smart phone",
		ProductCategory:    "electronics",
		Quantity:           1,
		WeightKg:           0.5,
		CountryOfOrigin:    "CO",
	})
	require.NoError(t, err)

	sh, err = svc.GetShipment(ctx, sh.ID)
	require.NoError(t, err)
	return sh
}

func TestFlow_HappyPathToClearance(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newFlow(t)
	sh := readyUSShipment(t, svc)

	require.Equal(t, models.ComplianceCompliant, sh.ComplianceStatus)
	require.NotNil(t, sh.CustomsDeclaration)
	require.Equal(t, "8471.30", *sh.CustomsDeclaration.HSCode)
	require.True(t, sh.CustomsDeclaration.DeclaredValue.Equal(sh.DeclaredValue))
	require.Equal(t, true, sh.Document(models.DocumentCommercialInvoice).Metadata["requires_translation"])

	rep, err := svc.CheckShipmentReadiness(ctx, sh.ID)
	require.NoError(t, err)
	require.True(t, rep.Ready)
	require.Empty(t, rep.MissingDocuments)

	ok, err := svc.StartCustomsClearance(ctx, sh.ID)
	require.NoError(t, err)
	require.True(t, ok)

	sh, err = svc.GetShipment(ctx, sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.CustomsInProcess, sh.CustomsStatus)
	require.True(t, strings.HasPrefix(*sh.CustomsTrackingNumber, "CUS-20260301-"))
	require.True(t, fixedNow.AddDate(0, 0, 5).Equal(*sh.EstimatedCustomsClearanceDate))

	due, err := st.ClaimDueClearances(ctx, fixedNow, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// second start is a state error, not "not ready"
	_, err = svc.StartCustomsClearance(ctx, sh.ID)
	require.ErrorIs(t, err, models.ErrInvalidState)

	err = svc.ApplyCustomsUpdate(ctx, messages.CustomsUpdated{
		ShipmentID: sh.ID,
		Status:     string(models.CustomsCleared),
		Fees:       &messages.Amount{Amount: decimal.RequireFromString("25"), Currency: "USD"},
		CheckedAt:  fixedNow.Add(time.Hour),
	})
	require.NoError(t, err)

	sh, err = svc.GetShipment(ctx, sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.CustomsCleared, sh.CustomsStatus)
	require.NotNil(t, sh.ActualCustomsClearanceDate)

	// cleared shipments leave the polling schedule
	due, err = st.ClaimDueClearances(ctx, fixedNow.Add(24*time.Hour), 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, due)

	costs, err := svc.CalculateInternationalCosts(ctx, sh.ID)
	require.NoError(t, err)
	require.Equal(t, "25.00 USD", costs.CustomsFees.String())
	require.Equal(t, "10.00 USD", costs.Insurance.String())
	require.Equal(t, "35.00 USD", costs.Total.String())
}

func TestFlow_StartClearanceNotReady(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFlow(t)

	sh, err := svc.CreateInternationalShipment(ctx, models.ShipmentInput{
		GuideID:            "G-1",
		CustomerID:         "C-1",
		DestinationCountry: "US",
		ProductCategory:    "electronics",
		DeclaredValue:      models.MustMoney("500", models.CurrencyUSD),
	})
	require.NoError(t, err)

	ok, err := svc.StartCustomsClearance(ctx, sh.ID)
	require.NoError(t, err)
	require.False(t, ok)

	rep, err := svc.CheckShipmentReadiness(ctx, sh.ID)
	require.NoError(t, err)
	require.False(t, rep.KYCValid)
	require.ElementsMatch(t, []models.DocumentType{
		models.DocumentCertificateOfOrigin, models.DocumentCommercialInvoice, models.DocumentResponsibilityLetter,
	}, rep.MissingDocuments)
}

func TestFlow_ProhibitedCategoryNeverReady(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFlow(t)

	sh, err := svc.CreateInternationalShipment(ctx, models.ShipmentInput{
		GuideID:            "G-2",
		CustomerID:         "C-1",
		DestinationCountry: "US",
		ProductCategory:    "food",
		DeclaredValue:      models.MustMoney("20", models.CurrencyUSD),
	})
	require.NoError(t, err)
	require.Equal(t, models.ComplianceNonCompliant, sh.ComplianceStatus)
	require.Contains(t, *sh.ComplianceNotes, "prohibited")
}

func TestFlow_KYCExpiryBlocksClearance(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newFlow(t)
	sh := readyUSShipment(t, svc)

	c.now = fixedNow.AddDate(1, 0, 1)
	ok, err := svc.StartCustomsClearance(ctx, sh.ID)
	require.NoError(t, err)
	require.False(t, ok)

	ks, err := svc.ListCustomerKYC(ctx, "C-1")
	require.NoError(t, err)
	require.Len(t, ks, 1)
	require.False(t, ks[0].ValidForInternationalShipping)
	require.True(t, ks[0].RequiresRenewal)
}

func TestFlow_InfoRequestThenResumeThenReject(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newFlow(t)
	sh := readyUSShipment(t, svc)

	ok, err := svc.StartCustomsClearance(ctx, sh.ID)
	require.NoError(t, err)
	require.True(t, ok)

	reason := "invoice unreadable"
	require.NoError(t, svc.ApplyCustomsUpdate(ctx, messages.CustomsUpdated{
		ShipmentID: sh.ID, Status: string(models.CustomsRequiresAdditionalInfo), Reason: &reason, CheckedAt: fixedNow,
	}))
	sh, err = svc.GetShipment(ctx, sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.CustomsRequiresAdditionalInfo, sh.CustomsStatus)
	require.Equal(t, reason, *sh.CustomsHoldReason)

	require.NoError(t, svc.ApplyCustomsUpdate(ctx, messages.CustomsUpdated{
		ShipmentID: sh.ID, Status: string(models.CustomsInProcess), CheckedAt: fixedNow,
	}))
	sh, err = svc.GetShipment(ctx, sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.CustomsInProcess, sh.CustomsStatus)
	require.Nil(t, sh.CustomsHoldReason)

	require.NoError(t, svc.ApplyCustomsUpdate(ctx, messages.CustomsUpdated{
		ShipmentID: sh.ID, Status: string(models.CustomsRejected), CheckedAt: fixedNow,
	}))
	sh, err = svc.GetShipment(ctx, sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.CustomsRejected, sh.CustomsStatus)

	due, err := st.ClaimDueClearances(ctx, fixedNow.Add(48*time.Hour), 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestFlow_DocumentValidationAndTranslation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFlow(t)
	sh := readyUSShipment(t, svc)
	invoice := sh.Document(models.DocumentCommercialInvoice)

	d, err := svc.ValidateDocument(ctx, sh.ID, invoice.ID, true, "ops", "")
	require.NoError(t, err)
	require.Equal(t, models.DocumentValid, d.ValidationStatus)

	d, err = svc.AddDocumentTranslation(ctx, sh.ID, invoice.ID, "https://files/invoice-en.pdf", "en")
	require.NoError(t, err)
	require.True(t, d.IsTranslated)
	require.Equal(t, models.DocumentValid, d.ValidationStatus)

	_, err = svc.AddRequiredDocument(ctx, sh.ID, AddDocumentInput{DocumentType: models.DocumentCommercialInvoice})
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestFlow_UpdateDeclaredValueReevaluates(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFlow(t)
	sh := readyUSShipment(t, svc)

	sh, err := svc.UpdateDeclaredValue(ctx, sh.ID, models.MustMoney("900", models.CurrencyUSD))
	require.NoError(t, err)
	require.Equal(t, models.ComplianceNonCompliant, sh.ComplianceStatus)

	_, err = svc.UpdateDeclaredValue(ctx, sh.ID, models.MustMoney("100", models.CurrencyEUR))
	require.ErrorIs(t, err, models.ErrCurrencyMismatch)

	sh, err = svc.UpdateDeclaredValue(ctx, sh.ID, models.MustMoney("700", models.CurrencyUSD))
	require.NoError(t, err)
	require.Equal(t, models.ComplianceCompliant, sh.ComplianceStatus)
}

func TestFlow_MixedCaseCategoryIsStillProhibited(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFlow(t)

	sh, err := svc.CreateInternationalShipment(ctx, models.ShipmentInput{
		GuideID:            "G-7",
		CustomerID:         "C-1",
		DestinationCountry: "us",
		ProductCategory:    "Food ",
		DeclaredValue:      models.MustMoney("50", models.CurrencyUSD),
	})
	require.NoError(t, err)
	require.Equal(t, "food", sh.ProductCategory)
	require.Len(t, sh.ApplicableRestrictions, 1)
	require.Equal(t, models.ComplianceNonCompliant, sh.ComplianceStatus)
	require.Contains(t, *sh.ComplianceNotes, "prohibited")
}

func TestFlow_DeclarationCannotDivergeFromShipment(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFlow(t)

	k := approvedKYC(t, svc, "C-1")
	sh, err := svc.CreateInternationalShipment(ctx, models.ShipmentInput{
		GuideID:            "G-8",
		CustomerID:         "C-1",
		DestinationCountry: "US",
		ProductCategory:    "clothing",
		DeclaredValue:      models.MustMoney("100", models.CurrencyUSD),
	})
	require.NoError(t, err)
	_, err = svc.AttachKYCValidation(ctx, sh.ID, k.ID)
	require.NoError(t, err)
	for _, dt := range []models.DocumentType{models.DocumentCommercialInvoice, models.DocumentResponsibilityLetter} {
		_, err := svc.AddRequiredDocument(ctx, sh.ID, AddDocumentInput{DocumentType: dt, FileURL: "https://files/" + string(dt) + ".pdf"})
		require.NoError(t, err)
	}

	food := models.DeclarationInput{
		ProductDescription: "instant soup",
		ProductCategory:    "food",
		Quantity:           10,
		WeightKg:           2,
		CountryOfOrigin:    "CO",
	}
	_, err = svc.CreateCustomsDeclaration(ctx, sh.ID, food)
	require.ErrorIs(t, err, models.ErrValidation)

	pricey := models.DeclarationInput{
		ProductDescription: "t-shirt",
		ProductCategory:    "clothing",
		Quantity:           10,
		WeightKg:           2,
		CountryOfOrigin:    "CO",
		DeclaredValue:      models.MustMoney("5000", models.CurrencyUSD),
	}
	_, err = svc.CreateCustomsDeclaration(ctx, sh.ID, pricey)
	require.ErrorIs(t, err, models.ErrValidation)

	started, err := svc.StartCustomsClearance(ctx, sh.ID)
	require.NoError(t, err)
	require.False(t, started)

	pricey.DeclaredValue = models.Money{}
	decl, err := svc.CreateCustomsDeclaration(ctx, sh.ID, pricey)
	require.NoError(t, err)
	require.Equal(t, "6109.10", *decl.HSCode)
	require.True(t, decl.DeclaredValue.Equal(models.MustMoney("100", models.CurrencyUSD)))
}

func TestFlow_ListByLowerCaseCountry(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFlow(t)
	sh := readyUSShipment(t, svc)

	list, err := svc.ListShipments(ctx, models.ShipmentFilter{DestinationCountry: " us"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, sh.ID, list[0].ID)
}

func TestFlow_COPShipmentCheckedAgainstEquivalentLimit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFlow(t)

	sh, err := svc.CreateInternationalShipment(ctx, models.ShipmentInput{
		GuideID:            "G-9",
		CustomerID:         "C-1",
		DestinationCountry: "US",
		ProductCategory:    "clothing",
		DeclaredValue:      models.MustMoney("400000", models.CurrencyCOP),
	})
	require.NoError(t, err)
	require.Equal(t, models.ComplianceCompliant, sh.ComplianceStatus)

	sh, err = svc.UpdateDeclaredValue(ctx, sh.ID, models.MustMoney("5000000", models.CurrencyCOP))
	require.NoError(t, err)
	require.Equal(t, models.ComplianceNonCompliant, sh.ComplianceStatus)
	require.Contains(t, *sh.ComplianceNotes, "exceeds maximum 3200000.00 COP")
}
