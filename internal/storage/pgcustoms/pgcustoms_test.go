package pgcustoms

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "customsbox_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/customsbox_test?sslmode=disable"
	var st *Storage
	// порт открывается раньше, чем postgres готов принимать запросы
	require.Eventually(t, func() bool {
		st, err = New(dsn)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(st.Close)
	return st
}

func TestPGCustoms_RepoFlow(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	k, err := models.NewKYCValidation("C-1", "onfido", now)
	require.NoError(t, err)
	require.NoError(t, st.CreateKYC(ctx, k))
	require.NoError(t, k.SubmitDocument("passport", "https://files/passport.pdf", now))
	require.NoError(t, k.Approve("ops", 85, models.RiskLevelLow, 12, now))
	require.NoError(t, st.SaveKYC(ctx, k))

	sh, err := models.NewInternationalShipment(models.ShipmentInput{
		GuideID:            "G-1",
		CustomerID:         "C-1",
		DestinationCountry: "US",
		ProductCategory:    "electronics",
		DeclaredValue:      models.MustMoney("500.00", models.CurrencyUSD),
	}, now)
	require.NoError(t, err)
	sh.ValidateCountryRestrictions([]models.CountryRestriction{{
		CountryCode:          "US",
		ProductCategory:      "electronics",
		RestrictionLevel:     models.RestrictionDocumentation,
		RequiredDocuments:    []models.DocumentType{models.DocumentCommercialInvoice},
		EstimatedCustomsDays: 5,
	}}, now)
	require.NoError(t, st.CreateShipment(ctx, sh))

	dup, err := models.NewInternationalShipment(models.ShipmentInput{
		GuideID: "G-1", CustomerID: "C-2", DestinationCountry: "US", ProductCategory: "food",
		DeclaredValue: models.MustMoney("10", models.CurrencyUSD),
	}, now)
	require.NoError(t, err)
	require.ErrorIs(t, st.CreateShipment(ctx, dup), models.ErrInvalidState)

	// собираем агрегат и сохраняем целиком
	require.NoError(t, sh.SetKYCValidation(k, now))
	for _, dt := range []models.DocumentType{models.DocumentCommercialInvoice, models.DocumentResponsibilityLetter} {
		d, err := models.NewInternationalDocument(sh.GuideID, dt, now)
		require.NoError(t, err)
		require.NoError(t, d.Upload("https://files/"+string(dt)+".pdf", map[string]any{"pages": 2}, now))
		require.NoError(t, sh.AddDocument(d, now))
	}
	decl, err := sh.CreateCustomsDeclaration(models.DeclarationInput{
		DeclaredValue:      sh.DeclaredValue,
		ProductDescription: "phone",
		ProductCategory:    "electronics",
		Quantity:           1,
		WeightKg:           0.4,
		CountryOfOrigin:    "CO",
	}, now)
	require.NoError(t, err)
	decl.SetHSCode("8517.13")
	require.NoError(t, st.SaveShipment(ctx, sh))

	got, err := st.GetShipment(ctx, sh.ID)
	require.NoError(t, err)
	require.Len(t, got.Documents, 2)
	require.Equal(t, 2.0, got.Documents[0].Metadata["pages"])
	require.NotNil(t, got.CustomsDeclaration)
	require.Equal(t, "8517.13", *got.CustomsDeclaration.HSCode)
	require.NotNil(t, got.KYCValidation)
	require.True(t, got.DeclaredValue.Equal(sh.DeclaredValue))
	require.Equal(t, models.ComplianceCompliant, got.ComplianceStatus)
	require.Len(t, got.ApplicableRestrictions, 1)
	require.True(t, got.IsReadyForShipping(now))

	list, err := st.ListShipments(ctx, models.ShipmentFilter{CustomerID: "C-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Documents, 2)

	ks, err := st.ListKYCByCustomer(ctx, "C-1")
	require.NoError(t, err)
	require.Len(t, ks, 1)
	require.Equal(t, models.KYCStatusApproved, ks[0].Status)

	_, err = st.GetShipment(ctx, uuid.New())
	require.ErrorIs(t, err, models.ErrNotFound)

	// clearance schedule + lease
	require.NoError(t, sh.StartCustomsClearance("CUS-20260301-AB12CD34", now))
	require.NoError(t, st.SaveShipment(ctx, sh))
	past := now.Add(-time.Minute)
	require.NoError(t, st.ScheduleClearanceCheck(ctx, sh.ID, &past, nil))

	lease := 10 * time.Second
	due, err := st.ClaimDueClearances(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, sh.ID, due[0].ShipmentID)
	require.Equal(t, "CUS-20260301-AB12CD34", due[0].TrackingNumber)
	require.WithinDuration(t, now.Add(lease), due[0].NextCheckAt, 2*time.Second)

	due, err = st.ClaimDueClearances(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Empty(t, due)

	msg := "broker unavailable"
	require.NoError(t, st.ScheduleClearanceCheck(ctx, sh.ID, &past, &msg))
	due, err = st.ClaimDueClearances(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, int32(1), due[0].CheckFailCount)

	require.NoError(t, st.ScheduleClearanceCheck(ctx, sh.ID, nil, nil))
	due, err = st.ClaimDueClearances(ctx, now.Add(time.Hour), 10, lease)
	require.NoError(t, err)
	require.Empty(t, due)

	require.ErrorIs(t, st.ScheduleClearanceCheck(ctx, uuid.New(), &past, nil), models.ErrNotFound)
}
