package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"crm-gin/internal/models"
)

// ===========================================================================
// Templates
// Each email has a subject, a plain text body and an HTML body.
// ===========================================================================

type template struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var funcs = map[string]any{
	"money": func(v float64) string { return FormatMoney(v) },
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("02/01/2006")
	},
}

func mustTemplate(name, subject, text, html string) *template {
	return &template{
		subject: texttemplate.Must(texttemplate.New(name + "_subject").Funcs(funcs).Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + "_text").Funcs(funcs).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name + "_html").Funcs(funcs).Parse(layout(html))),
	}
}

func layout(body string) string {
	return `<!DOCTYPE html><html lang="fr"><body style="font-family:Arial,sans-serif;color:#1f2937;max-width:600px;margin:0 auto">` +
		body +
		`<p style="color:#6b7280;font-size:12px;margin-top:32px">{{.CompanyName}}</p></body></html>`
}

func (t *template) render(to string, data any) (*Message, error) {
	var subject, text, html bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return &Message{
		To:      []string{to},
		Subject: strings.TrimSpace(subject.String()),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// FormatMoney prints 1234.5 as "1 234,50 €"
func FormatMoney(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, dec := s[:len(s)-3], s[len(s)-2:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + dec + " €"
	if neg {
		out = "-" + out
	}
	return out
}

var (
	passwordResetTpl = mustTemplate("password_reset",
		`Réinitialisation de votre mot de passe`,
		`Bonjour {{.Name}},

Une demande de réinitialisation de mot de passe a été faite pour votre compte.
Ouvrez ce lien dans l'heure pour choisir un nouveau mot de passe :
{{.Link}}

Si vous n'êtes pas à l'origine de cette demande, ignorez ce message.
`,
		`<p>Bonjour {{.Name}},</p>
<p>Une demande de réinitialisation de mot de passe a été faite pour votre compte.</p>
<p><a href="{{.Link}}">Choisir un nouveau mot de passe</a> (lien valable une heure)</p>
<p>Si vous n'êtes pas à l'origine de cette demande, ignorez ce message.</p>`)

	invitationTpl = mustTemplate("invitation",
		`Invitation à rejoindre {{.CompanyName}}`,
		`Bonjour {{.Name}},

{{.InvitedBy}} vous invite à rejoindre l'espace {{.CompanyName}}.
Définissez votre mot de passe ici : {{.Link}}
`,
		`<p>Bonjour {{.Name}},</p>
<p>{{.InvitedBy}} vous invite à rejoindre l'espace <strong>{{.CompanyName}}</strong>.</p>
<p><a href="{{.Link}}">Activer mon compte</a></p>`)

	signatureTpl = mustTemplate("signature_request",
		`Signature du contrat : {{.Title}}`,
		`Bonjour {{.Name}},

Le contrat "{{.Title}}" est prêt à être signé électroniquement :
{{.Link}}
`,
		`<p>Bonjour {{.Name}},</p>
<p>Le contrat <strong>{{.Title}}</strong> est prêt à être signé électroniquement.</p>
<p><a href="{{.Link}}">Signer le contrat</a></p>`)

	invoiceTpl = mustTemplate("invoice",
		`Facture {{.Number}}`,
		`Bonjour {{.Name}},

Veuillez trouver ci-dessous le détail de la facture {{.Number}} d'un montant de {{money .TotalTTC}} TTC{{if .DueDate}}, à régler avant le {{date .DueDate}}{{end}}.
{{range .Items}}
- {{.Description}} : {{.Quantity}} x {{money .UnitPriceHT}} HT
{{- end}}

Total HT : {{money .SubtotalHT}}
TVA : {{money .TaxAmount}}
Total TTC : {{money .TotalTTC}}
{{if .SEPA}}
Règlement par virement SEPA :
Bénéficiaire : {{.SEPA.CreditorName}}
IBAN : {{.SEPA.IBAN}}{{if .SEPA.BIC}}
BIC : {{.SEPA.BIC}}{{end}}
Référence : {{.Number}}
{{end}}`,
		`<p>Bonjour {{.Name}},</p>
<p>Veuillez trouver ci-dessous le détail de la facture <strong>{{.Number}}</strong>{{if .DueDate}}, à régler avant le {{date .DueDate}}{{end}}.</p>
<table style="width:100%;border-collapse:collapse">
<tr><th align="left">Désignation</th><th align="right">Qté</th><th align="right">PU HT</th><th align="right">Total HT</th></tr>
{{range .Items}}<tr><td>{{.Description}}</td><td align="right">{{.Quantity}}</td><td align="right">{{money .UnitPriceHT}}</td><td align="right">{{money .TotalHT}}</td></tr>
{{end}}</table>
<p>Total HT : {{money .SubtotalHT}}<br>TVA : {{money .TaxAmount}}<br><strong>Total TTC : {{money .TotalTTC}}</strong></p>
{{if .SEPA}}<p><strong>Règlement par virement SEPA</strong><br>Bénéficiaire : {{.SEPA.CreditorName}}<br>IBAN : {{.SEPA.IBAN}}{{if .SEPA.BIC}}<br>BIC : {{.SEPA.BIC}}{{end}}<br>Référence : {{.Number}}</p>{{end}}`)

	quoteTpl = mustTemplate("quote",
		`Devis {{.Number}}`,
		`Bonjour {{.Name}},

Voici notre devis {{.Number}} d'un montant de {{money .TotalTTC}} TTC{{if .ValidUntil}}, valable jusqu'au {{date .ValidUntil}}{{end}}.
{{range .Items}}
- {{.Description}} : {{.Quantity}} x {{money .UnitPriceHT}} HT
{{- end}}

Total HT : {{money .SubtotalHT}}
TVA : {{money .TaxAmount}}
Total TTC : {{money .TotalTTC}}
`,
		`<p>Bonjour {{.Name}},</p>
<p>Voici notre devis <strong>{{.Number}}</strong>{{if .ValidUntil}}, valable jusqu'au {{date .ValidUntil}}{{end}}.</p>
<table style="width:100%;border-collapse:collapse">
<tr><th align="left">Désignation</th><th align="right">Qté</th><th align="right">PU HT</th><th align="right">Total HT</th></tr>
{{range .Items}}<tr><td>{{.Description}}</td><td align="right">{{.Quantity}}</td><td align="right">{{money .UnitPriceHT}}</td><td align="right">{{money .TotalHT}}</td></tr>
{{end}}</table>
<p>Total HT : {{money .SubtotalHT}}<br>TVA : {{money .TaxAmount}}<br><strong>Total TTC : {{money .TotalTTC}}</strong></p>`)
)

// ===========================================================================
// Composers
// ===========================================================================

type PasswordResetData struct {
	CompanyName string
	Name        string
	Link        string
}

func PasswordReset(to string, data PasswordResetData) (*Message, error) {
	return passwordResetTpl.render(to, data)
}

type InvitationData struct {
	CompanyName string
	Name        string
	InvitedBy   string
	Link        string
}

func Invitation(to string, data InvitationData) (*Message, error) {
	return invitationTpl.render(to, data)
}

type SignatureRequestData struct {
	CompanyName string
	Name        string
	Title       string
	Link        string
}

func SignatureRequest(to string, data SignatureRequestData) (*Message, error) {
	return signatureTpl.render(to, data)
}

type invoiceData struct {
	CompanyName string
	Name        string
	*models.Invoice
	SEPA *models.SEPASettings
}

// Invoice composes the invoice email. Payment instructions are added when
// the tenant configured SEPA details.
func Invoice(companyName string, inv *models.Invoice, sepa models.SEPASettings) (*Message, error) {
	if inv.Client == nil || inv.Client.Email == "" {
		return nil, fmt.Errorf("mail: client has no email address")
	}
	data := invoiceData{CompanyName: companyName, Name: greetingName(inv.Client), Invoice: inv}
	if sepa.Configured() {
		if sepa.CreditorName == "" {
			sepa.CreditorName = companyName
		}
		data.SEPA = &sepa
	}
	return invoiceTpl.render(inv.Client.Email, data)
}

type quoteData struct {
	CompanyName string
	Name        string
	*models.Quote
}

func Quote(companyName string, q *models.Quote) (*Message, error) {
	if q.Client == nil || q.Client.Email == "" {
		return nil, fmt.Errorf("mail: client has no email address")
	}
	return quoteTpl.render(q.Client.Email, quoteData{CompanyName: companyName, Name: greetingName(q.Client), Quote: q})
}

func greetingName(c *models.Client) string {
	if n := c.ContactName(); n != "" {
		return n
	}
	return c.DisplayName()
}
