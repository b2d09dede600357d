package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "960,00 €", FormatMoney(960))
	assert.Equal(t, "1 234,50 €", FormatMoney(1234.5))
	assert.Equal(t, "1 000 000,00 €", FormatMoney(1e6))
	assert.Equal(t, "-42,10 €", FormatMoney(-42.1))
}

func sampleInvoice() *models.Invoice {
	due := time.Date(2026, 11, 13, 0, 0, 0, 0, time.UTC)
	return &models.Invoice{
		Number:     "FAC-2026-0001",
		DueDate:    &due,
		SubtotalHT: 800,
		TaxAmount:  160,
		TotalTTC:   960,
		Client:     &models.Client{CompanyName: "Dupont SARL", ContactFirstName: "Jean", ContactLastName: "Dupont", Email: "jean@dupont.fr"},
		Items: []models.InvoiceItem{
			{Description: "Développement", Quantity: 10, UnitPriceHT: 80, TotalHT: 800},
		},
	}
}

func TestInvoice_WithSEPAInstructions(t *testing.T) {
	msg, err := Invoice("Acme", sampleInvoice(), models.SEPASettings{IBAN: "FR7630006000011234567890189", BIC: "AGRIFRPP"})
	require.NoError(t, err)

	assert.Equal(t, []string{"jean@dupont.fr"}, msg.To)
	assert.Equal(t, "Facture FAC-2026-0001", msg.Subject)
	assert.Contains(t, msg.Text, "Bonjour Jean Dupont")
	assert.Contains(t, msg.Text, "13/11/2026")
	assert.Contains(t, msg.Text, "960,00 €")
	assert.Contains(t, msg.Text, "IBAN : FR7630006000011234567890189")
	assert.Contains(t, msg.Text, "Bénéficiaire : Acme")
	assert.Contains(t, msg.HTML, "<strong>FAC-2026-0001</strong>")
}

func TestInvoice_WithoutSEPA(t *testing.T) {
	msg, err := Invoice("Acme", sampleInvoice(), models.SEPASettings{})
	require.NoError(t, err)
	assert.NotContains(t, msg.Text, "IBAN")
}

func TestInvoice_RequiresClientEmail(t *testing.T) {
	inv := sampleInvoice()
	inv.Client.Email = ""
	_, err := Invoice("Acme", inv, models.SEPASettings{})
	assert.Error(t, err)
}

func TestTemplatesEscapeHTML(t *testing.T) {
	msg, err := SignatureRequest("a@b.fr", SignatureRequestData{CompanyName: "Acme", Name: "<script>", Title: "Maintenance", Link: "https://sign/1"})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.Text, "<script>")
}

func TestMessageBytes(t *testing.T) {
	msg, err := PasswordReset("jean@dupont.fr", PasswordResetData{CompanyName: "Acme", Name: "Jean", Link: "https://crm/reset?token=abc"})
	require.NoError(t, err)
	msg.From = FormatAddress("Acme", "noreply@acme.fr")

	raw, err := msg.Bytes()
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, "To: jean@dupont.fr\r\n")
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "Subject: =?utf-8?q?")
	assert.True(t, strings.Contains(s, "text/plain") && strings.Contains(s, "text/html"))

	_, err = (&Message{}).Bytes()
	assert.Error(t, err)
}

type fakeTransport struct {
	sent []*Message
	err  error
}

func (f *fakeTransport) Send(_ context.Context, msg *Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeTransport) Test(context.Context) error { return f.err }

type staticSettings struct{ s models.TenantSettings }

func (s staticSettings) Get(context.Context, uuid.UUID) (*models.TenantSettings, error) {
	return &s.s, nil
}

func TestMailer(t *testing.T) {
	ft := &fakeTransport{}
	factory := func(models.SMTPSettings) Transport { return ft }
	msg := &Message{To: []string{"x@y.fr"}, Subject: "s"}

	unconfigured := NewMailer(staticSettings{}, factory, zap.NewNop())
	assert.ErrorIs(t, unconfigured.Send(context.Background(), uuid.New(), msg), apperrors.ErrNotConfigured)

	configured := NewMailer(staticSettings{s: models.TenantSettings{SMTP: models.SMTPSettings{Host: "smtp.acme.fr", Port: 587, FromEmail: "noreply@acme.fr"}}}, factory, zap.NewNop())
	require.NoError(t, configured.Send(context.Background(), uuid.New(), msg))
	assert.Len(t, ft.sent, 1)

	ft.err = errors.New("connection refused")
	err := configured.Send(context.Background(), uuid.New(), msg)
	assert.ErrorIs(t, err, apperrors.ErrExternal)
}
