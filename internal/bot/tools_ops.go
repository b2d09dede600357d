package bot

import (
	"context"
	"time"

	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/integrations/graph"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"
)

// ===========================================================================
// Treasury, subscriptions, domains, catalogue, support, contracts,
// analytics and calendar
// ===========================================================================

type listTransactionsArgs struct {
	AccountID string `json:"accountId,omitempty"`
	From      string `json:"from,omitempty" jsonschema_description:"Date de début"`
	To        string `json:"to,omitempty" jsonschema_description:"Date de fin"`
	Search    string `json:"search,omitempty" jsonschema_description:"Texte recherché dans le libellé ou la contrepartie"`
	Limit     int    `json:"limit,omitempty"`
}

type listUnreconciledArgs struct {
	Limit int `json:"limit,omitempty"`
}

type reconcileArgs struct {
	TransactionID string `json:"transactionId" jsonschema:"required"`
	InvoiceRef
}

type listSubscriptionsArgs struct {
	Status string `json:"status,omitempty" jsonschema:"enum=active,enum=paused,enum=cancelled"`
	ClientRef
}

type listDomainsArgs struct {
	Search string `json:"search,omitempty"`
	ClientRef
}

type listExpiringDomainsArgs struct {
	Days int `json:"days,omitempty" jsonschema_description:"Fenêtre en jours, 30 par défaut"`
}

type listServicesArgs struct {
	Search string `json:"search,omitempty"`
}

type createTicketArgs struct {
	ClientRef
	Subject  string `json:"subject" jsonschema:"required"`
	Message  string `json:"message" jsonschema:"required"`
	Priority string `json:"priority,omitempty" jsonschema:"enum=low,enum=normal,enum=high,enum=urgent"`
}

type listTicketsArgs struct {
	Status string `json:"status,omitempty" jsonschema:"enum=open,enum=pending,enum=resolved,enum=closed"`
	ClientRef
}

type addTicketMessageArgs struct {
	TicketID string `json:"ticketId" jsonschema:"required"`
	Content  string `json:"content" jsonschema:"required"`
}

type updateTicketStatusArgs struct {
	TicketID string `json:"ticketId" jsonschema:"required"`
	Status   string `json:"status" jsonschema:"required,enum=open,enum=pending,enum=resolved,enum=closed"`
}

type listContractsArgs struct {
	Status string `json:"status,omitempty" jsonschema:"enum=draft,enum=sent,enum=signed,enum=cancelled"`
	ClientRef
}

type sendContractArgs struct {
	ContractID string `json:"contractId" jsonschema:"required"`
}

type revenueByMonthArgs struct {
	Months int `json:"months,omitempty" jsonschema_description:"Nombre de mois, 12 par défaut"`
}

type topClientsArgs struct {
	Limit int `json:"limit,omitempty"`
}

type createEventArgs struct {
	Subject         string `json:"subject" jsonschema:"required"`
	Start           string `json:"start" jsonschema:"required" jsonschema_description:"Début, par exemple 'demain 14h'"`
	End             string `json:"end,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	Location        string `json:"location,omitempty"`
	Description     string `json:"description,omitempty"`
}

type listEventsArgs struct {
	From string `json:"from,omitempty" jsonschema_description:"Début de la période, maintenant par défaut"`
	To   string `json:"to,omitempty"`
	Days int    `json:"days,omitempty" jsonschema_description:"Durée de la période quand to est absent, 7 par défaut"`
}

func treasuryTools() []Tool {
	return []Tool{
		define("get_treasury_summary", "Résumé de trésorerie: soldes, flux sur 30 jours, opérations à rapprocher",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, _ NoArgs) (any, error) {
				return d.deps.Treasury.Summary(ctx, tc.TenantID)
			}),

		define("list_bank_transactions", "Lister les opérations bancaires",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listTransactionsArgs) (any, error) {
				accountID, err := parseOptionalID(a.AccountID, "accountId")
				if err != nil {
					return nil, err
				}
				from, err := tc.parseDate(a.From, "from")
				if err != nil {
					return nil, err
				}
				to, err := tc.parseDate(a.To, "to")
				if err != nil {
					return nil, err
				}
				txs, total, err := d.deps.Treasury.ListTransactions(ctx, tc.TenantID,
					repositories.TransactionFilter{AccountID: accountID, From: from, To: to, Search: a.Search},
					repositories.FindOptions{Limit: limitOr(a.Limit, 20, 100), OrderBy: "booking_date"})
				if err != nil {
					return nil, err
				}
				return list(txs, total), nil
			}),

		define("list_unreconciled_transactions", "Lister les encaissements pas encore rapprochés d'une facture",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listUnreconciledArgs) (any, error) {
				reconciled := false
				txs, total, err := d.deps.Treasury.ListTransactions(ctx, tc.TenantID,
					repositories.TransactionFilter{Reconciled: &reconciled, CreditsOnly: true},
					repositories.FindOptions{Limit: limitOr(a.Limit, 20, 100), OrderBy: "booking_date"})
				if err != nil {
					return nil, err
				}
				return list(txs, total), nil
			}),

		define("reconcile_transaction", "Rapprocher une opération bancaire d'une facture",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a reconcileArgs) (any, error) {
				txID, err := parseID(a.TransactionID, "transactionId")
				if err != nil {
					return nil, err
				}
				inv, err := d.invoice(ctx, tc, a.InvoiceRef)
				if err != nil {
					return nil, err
				}
				return d.deps.Treasury.Reconcile(ctx, tc.TenantID, txID, inv.ID)
			}),
	}
}

func catalogTools() []Tool {
	return []Tool{
		define("list_subscriptions", "Lister les abonnements récurrents",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listSubscriptionsArgs) (any, error) {
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				subs, total, err := d.deps.Store.Subscriptions.List(ctx, tc.TenantID,
					repositories.SubscriptionFilter{ClientID: c.idPtr(), Status: models.SubscriptionStatus(a.Status)},
					repositories.FindOptions{Limit: 100})
				if err != nil {
					return nil, err
				}
				return list(subs, total), nil
			}),

		define("list_domains", "Lister les noms de domaine",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listDomainsArgs) (any, error) {
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				domains, total, err := d.deps.Store.Domains.List(ctx, tc.TenantID,
					repositories.DomainFilter{ClientID: c.idPtr(), Name: a.Search},
					repositories.FindOptions{Limit: 100, OrderBy: "name", OrderDir: "asc"})
				if err != nil {
					return nil, err
				}
				return list(domains, total), nil
			}),

		define("list_expiring_domains", "Lister les domaines qui expirent bientôt",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listExpiringDomainsArgs) (any, error) {
				days := limitOr(a.Days, 30, 730)
				before := d.now().AddDate(0, 0, days)
				domains, total, err := d.deps.Store.Domains.List(ctx, tc.TenantID,
					repositories.DomainFilter{ExpiresBefore: &before},
					repositories.FindOptions{Limit: 100, OrderBy: "expires_at", OrderDir: "asc"})
				if err != nil {
					return nil, err
				}
				return list(domains, total), nil
			}),

		define("list_services", "Lister les prestations du catalogue et leurs tarifs",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listServicesArgs) (any, error) {
				items, total, err := d.deps.Store.Services.List(ctx, tc.TenantID,
					repositories.ServiceFilter{ActiveOnly: true, Search: a.Search},
					repositories.FindOptions{Limit: 100, OrderBy: "name", OrderDir: "asc"})
				if err != nil {
					return nil, err
				}
				return list(items, total), nil
			}),
	}
}

func supportTools() []Tool {
	return []Tool{
		define("create_ticket", "Ouvrir un ticket de support pour un client",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a createTicketArgs) (any, error) {
				c, err := d.client(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				return d.deps.Work.CreateTicket(ctx, tc.TenantID, services.TicketInput{
					ClientID: c.ID,
					Subject:  a.Subject,
					Message:  a.Message,
					Priority: models.Priority(a.Priority),
					Author:   models.AuthorStaff,
				})
			}),

		define("list_tickets", "Lister les tickets de support",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listTicketsArgs) (any, error) {
				var filter repositories.TicketFilter
				if a.Status != "" {
					if !models.IsValidTicketStatus(a.Status) {
						return nil, apperrors.Invalid("Statut de ticket invalide")
					}
					filter.Statuses = []models.TicketStatus{models.TicketStatus(a.Status)}
				}
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				filter.ClientID = c.idPtr()
				tickets, total, err := d.deps.Work.ListTickets(ctx, tc.TenantID, filter, repositories.FindOptions{Limit: 50})
				if err != nil {
					return nil, err
				}
				return list(tickets, total), nil
			}),

		define("add_ticket_message", "Répondre sur un ticket de support",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a addTicketMessageArgs) (any, error) {
				id, err := parseID(a.TicketID, "ticketId")
				if err != nil {
					return nil, err
				}
				return d.deps.Work.AddTicketMessage(ctx, tc.TenantID, id, models.AuthorStaff, a.Content)
			}),

		define("update_ticket_status", "Changer le statut d'un ticket",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a updateTicketStatusArgs) (any, error) {
				id, err := parseID(a.TicketID, "ticketId")
				if err != nil {
					return nil, err
				}
				return d.deps.Work.UpdateTicketStatus(ctx, tc.TenantID, id, models.TicketStatus(a.Status))
			}),

		define("list_contracts", "Lister les contrats",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listContractsArgs) (any, error) {
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				contracts, total, err := d.deps.Contracts.List(ctx, tc.TenantID,
					repositories.ContractFilter{ClientID: c.idPtr(), Status: models.ContractStatus(a.Status)},
					repositories.FindOptions{Limit: 50})
				if err != nil {
					return nil, err
				}
				return list(contracts, total), nil
			}),

		define("send_contract_for_signature", "Envoyer un contrat en signature électronique au client",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a sendContractArgs) (any, error) {
				id, err := parseID(a.ContractID, "contractId")
				if err != nil {
					return nil, err
				}
				return d.deps.Contracts.SendForSignature(ctx, tc.TenantID, id)
			}),
	}
}

func analyticsTools() []Tool {
	return []Tool{
		define("get_dashboard_stats", "Indicateurs clés: chiffre d'affaires, impayés, MRR, trésorerie",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, _ NoArgs) (any, error) {
				return d.deps.Analytics.Dashboard(ctx, tc.TenantID)
			}),

		define("get_revenue_by_month", "Chiffre d'affaires encaissé par mois",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a revenueByMonthArgs) (any, error) {
				return d.deps.Analytics.RevenueByMonth(ctx, tc.TenantID, a.Months)
			}),

		define("get_top_clients", "Meilleurs clients par chiffre d'affaires",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a topClientsArgs) (any, error) {
				return d.deps.Analytics.TopClients(ctx, tc.TenantID, a.Limit)
			}),
	}
}

func calendarTools() []Tool {
	return []Tool{
		define("create_calendar_event", "Ajouter un rendez-vous dans l'agenda Outlook",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a createEventArgs) (any, error) {
				start, err := tc.parseDate(a.Start, "start")
				if err != nil {
					return nil, err
				}
				if start == nil {
					return nil, apperrors.Invalid("La date de début est requise")
				}
				end, err := tc.parseDate(a.End, "end")
				if err != nil {
					return nil, err
				}
				if end == nil {
					duration := d.deps.DefaultEventDuration
					if a.DurationMinutes > 0 {
						duration = time.Duration(a.DurationMinutes) * time.Minute
					}
					e := start.Add(duration)
					end = &e
				}
				return d.deps.Calendar.CreateEvent(ctx, tc.TenantID, graph.NewEvent{
					Subject:  a.Subject,
					Body:     a.Description,
					Location: a.Location,
					Start:    *start,
					End:      *end,
				})
			}),

		define("list_calendar_events", "Lister les rendez-vous de l'agenda sur une période",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listEventsArgs) (any, error) {
				from, err := tc.parseDate(a.From, "from")
				if err != nil {
					return nil, err
				}
				if from == nil {
					now := d.now()
					from = &now
				}
				to, err := tc.parseDate(a.To, "to")
				if err != nil {
					return nil, err
				}
				if to == nil {
					e := from.AddDate(0, 0, limitOr(a.Days, 7, 90))
					to = &e
				}
				events, err := d.deps.Calendar.ListEvents(ctx, tc.TenantID, *from, *to)
				if err != nil {
					return nil, err
				}
				return list(events, 0), nil
			}),
	}
}
