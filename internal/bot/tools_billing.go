package bot

import (
	"context"
	"strings"

	"crm-gin/internal/billing"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"
)

// ===========================================================================
// Quotes and invoices
// ===========================================================================

// InvoiceRef identifies an invoice by id or by its number (FAC-2026-0001)
type InvoiceRef struct {
	InvoiceID     string `json:"invoiceId,omitempty"`
	InvoiceNumber string `json:"invoiceNumber,omitempty" jsonschema_description:"Numéro de facture, par exemple FAC-2026-0001"`
}

// QuoteRef identifies a quote by id or by its number (DEV-2026-0001)
type QuoteRef struct {
	QuoteID     string `json:"quoteId,omitempty"`
	QuoteNumber string `json:"quoteNumber,omitempty" jsonschema_description:"Numéro de devis, par exemple DEV-2026-0001"`
}

type createQuoteArgs struct {
	ClientRef
	Items      []LineArg `json:"items" jsonschema:"required"`
	ValidUntil string    `json:"validUntil,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

type listQuotesArgs struct {
	Status string `json:"status,omitempty" jsonschema:"enum=draft,enum=sent,enum=accepted,enum=rejected,enum=expired"`
	ClientRef
	Limit int `json:"limit,omitempty"`
}

type updateQuoteStatusArgs struct {
	QuoteRef
	Status string `json:"status" jsonschema:"required,enum=draft,enum=sent,enum=accepted,enum=rejected,enum=expired"`
}

type convertQuoteArgs struct {
	QuoteRef
}

type createInvoiceArgs struct {
	ClientRef
	Items   []LineArg `json:"items" jsonschema:"required"`
	DueDate string    `json:"dueDate,omitempty" jsonschema_description:"Échéance, 30 jours par défaut"`
	Notes   string    `json:"notes,omitempty"`
}

type listInvoicesArgs struct {
	Status string `json:"status,omitempty" jsonschema:"enum=draft,enum=sent,enum=paid,enum=overdue,enum=cancelled"`
	ClientRef
	Limit int `json:"limit,omitempty"`
}

type getInvoiceArgs struct {
	InvoiceRef
}

type markInvoicePaidArgs struct {
	InvoiceRef
	PaymentDate   string `json:"paymentDate,omitempty" jsonschema_description:"Date du paiement, aujourd'hui par défaut"`
	PaymentMethod string `json:"paymentMethod,omitempty" jsonschema_description:"virement, chèque, carte..."`
}

type sendInvoiceArgs struct {
	InvoiceRef
}

func toLines(items []LineArg) []billing.Line {
	lines := make([]billing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, billing.Line{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			VATRate:     it.VATRate,
		})
	}
	return lines
}

func (d *Dispatcher) invoice(ctx context.Context, tc *ToolContext, ref InvoiceRef) (*models.Invoice, error) {
	if strings.TrimSpace(ref.InvoiceID) != "" {
		id, err := parseID(ref.InvoiceID, "invoiceId")
		if err != nil {
			return nil, err
		}
		return d.deps.Invoices.Get(ctx, tc.TenantID, id)
	}
	if strings.TrimSpace(ref.InvoiceNumber) == "" {
		return nil, apperrors.Invalid("invoiceId ou invoiceNumber est requis")
	}
	return d.deps.Invoices.GetByNumber(ctx, tc.TenantID, ref.InvoiceNumber)
}

func (d *Dispatcher) quote(ctx context.Context, tc *ToolContext, ref QuoteRef) (*models.Quote, error) {
	if strings.TrimSpace(ref.QuoteID) != "" {
		id, err := parseID(ref.QuoteID, "quoteId")
		if err != nil {
			return nil, err
		}
		return d.deps.Quotes.Get(ctx, tc.TenantID, id)
	}
	if strings.TrimSpace(ref.QuoteNumber) == "" {
		return nil, apperrors.Invalid("quoteId ou quoteNumber est requis")
	}
	return d.deps.Quotes.GetByNumber(ctx, tc.TenantID, ref.QuoteNumber)
}

func billingTools() []Tool {
	return []Tool{
		define("create_quote", "Créer un devis pour un client à partir de lignes chiffrées",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a createQuoteArgs) (any, error) {
				c, err := d.client(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				validUntil, err := tc.parseDate(a.ValidUntil, "validUntil")
				if err != nil {
					return nil, err
				}
				return d.deps.Quotes.Create(ctx, tc.TenantID, services.CreateQuoteInput{
					ClientID:   c.ID,
					ValidUntil: validUntil,
					Notes:      a.Notes,
					Lines:      toLines(a.Items),
				})
			}),

		define("list_quotes", "Lister les devis",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listQuotesArgs) (any, error) {
				var filter repositories.QuoteFilter
				if a.Status != "" {
					if !models.IsValidQuoteStatus(a.Status) {
						return nil, apperrors.Invalid("Statut de devis invalide")
					}
					filter.Statuses = []models.QuoteStatus{models.QuoteStatus(a.Status)}
				}
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				filter.ClientID = c.idPtr()
				quotes, total, err := d.deps.Quotes.List(ctx, tc.TenantID, filter,
					repositories.FindOptions{Limit: limitOr(a.Limit, 10, 50)})
				if err != nil {
					return nil, err
				}
				return list(quotes, total), nil
			}),

		define("update_quote_status", "Changer le statut d'un devis (envoyé, accepté, refusé...)",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a updateQuoteStatusArgs) (any, error) {
				q, err := d.quote(ctx, tc, a.QuoteRef)
				if err != nil {
					return nil, err
				}
				return d.deps.Quotes.UpdateStatus(ctx, tc.TenantID, q.ID, models.QuoteStatus(a.Status))
			}),

		define("convert_quote_to_invoice", "Transformer un devis en facture. Un devis ne se convertit qu'une fois.",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a convertQuoteArgs) (any, error) {
				q, err := d.quote(ctx, tc, a.QuoteRef)
				if err != nil {
					return nil, err
				}
				return d.deps.Quotes.ConvertToInvoice(ctx, tc.TenantID, q.ID)
			}),

		define("create_invoice", "Créer une facture pour un client à partir de lignes chiffrées",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a createInvoiceArgs) (any, error) {
				c, err := d.client(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				due, err := tc.parseDate(a.DueDate, "dueDate")
				if err != nil {
					return nil, err
				}
				return d.deps.Invoices.Create(ctx, tc.TenantID, services.CreateInvoiceInput{
					ClientID: c.ID,
					DueDate:  due,
					Notes:    a.Notes,
					Lines:    toLines(a.Items),
				})
			}),

		define("list_invoices", "Lister les factures",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listInvoicesArgs) (any, error) {
				var filter repositories.InvoiceFilter
				if a.Status != "" {
					if !models.IsValidInvoiceStatus(a.Status) {
						return nil, apperrors.Invalid("Statut de facture invalide")
					}
					filter.Statuses = []models.InvoiceStatus{models.InvoiceStatus(a.Status)}
				}
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				filter.ClientID = c.idPtr()
				invoices, total, err := d.deps.Invoices.List(ctx, tc.TenantID, filter,
					repositories.FindOptions{Limit: limitOr(a.Limit, 10, 50)})
				if err != nil {
					return nil, err
				}
				return list(invoices, total), nil
			}),

		define("get_invoice", "Afficher le détail d'une facture",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a getInvoiceArgs) (any, error) {
				return d.invoice(ctx, tc, a.InvoiceRef)
			}),

		define("list_unpaid_invoices", "Lister les factures envoyées non encore payées",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, _ NoArgs) (any, error) {
				invoices, err := d.deps.Invoices.ListUnpaid(ctx, tc.TenantID)
				if err != nil {
					return nil, err
				}
				return list(invoices, 0), nil
			}),

		define("list_overdue_invoices", "Lister les factures en retard de paiement",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, _ NoArgs) (any, error) {
				if _, err := d.deps.Invoices.RefreshOverdue(ctx, tc.TenantID); err != nil {
					return nil, err
				}
				invoices, err := d.deps.Invoices.ListOverdue(ctx, tc.TenantID)
				if err != nil {
					return nil, err
				}
				return list(invoices, 0), nil
			}),

		define("mark_invoice_paid", "Marquer une facture comme payée",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a markInvoicePaidArgs) (any, error) {
				inv, err := d.invoice(ctx, tc, a.InvoiceRef)
				if err != nil {
					return nil, err
				}
				paidAt, err := tc.parseDate(a.PaymentDate, "paymentDate")
				if err != nil {
					return nil, err
				}
				return d.deps.Invoices.MarkPaid(ctx, tc.TenantID, inv.ID, paidAt, a.PaymentMethod)
			}),

		define("send_invoice_email", "Envoyer une facture au client par email",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a sendInvoiceArgs) (any, error) {
				inv, err := d.invoice(ctx, tc, a.InvoiceRef)
				if err != nil {
					return nil, err
				}
				return d.deps.Invoices.SendEmail(ctx, tc.TenantID, inv.ID)
			}),
	}
}
