package services

import (
	"context"
	"fmt"
	"time"

	"crm-gin/internal/billing"
	"crm-gin/internal/cache"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ===========================================================================
// Analytics Service
// Read-only aggregates for the dashboard and the assistant
// ===========================================================================

type DashboardStats struct {
	RevenueThisMonth float64 `json:"revenue_this_month"`
	RevenueLastMonth float64 `json:"revenue_last_month"`
	RevenueThisYear  float64 `json:"revenue_this_year"`
	UnpaidCount      int64   `json:"unpaid_count"`
	UnpaidAmount     float64 `json:"unpaid_amount"`
	OverdueCount     int64   `json:"overdue_count"`
	OverdueAmount    float64 `json:"overdue_amount"`
	ActiveClients    int64   `json:"active_clients"`
	PendingQuotes    int64   `json:"pending_quotes"`
	OpenTasks        int64   `json:"open_tasks"`
	OpenTickets      int64   `json:"open_tickets"`
	MonthlyRecurring float64 `json:"monthly_recurring"`
	TreasuryBalance  float64 `json:"treasury_balance"`
}

type MonthlyRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Count   int64   `json:"count"`
}

type TopClient struct {
	ClientID   uuid.UUID `json:"client_id"`
	ClientName string    `json:"client_name"`
	Revenue    float64   `json:"revenue"`
	Invoices   int64     `json:"invoices"`
}

type ClientSummary struct {
	Client        *models.Client `json:"client"`
	TotalInvoiced float64        `json:"total_invoiced"`
	TotalPaid     float64        `json:"total_paid"`
	UnpaidAmount  float64        `json:"unpaid_amount"`
	InvoiceCount  int64          `json:"invoice_count"`
	QuoteCount    int64          `json:"quote_count"`
	OpenTickets   int64          `json:"open_tickets"`
	ActiveDomains int64          `json:"domains"`
}

type AnalyticsService interface {
	Dashboard(ctx context.Context, tenantID uuid.UUID) (*DashboardStats, error)
	// RevenueByMonth returns paid revenue of the last months, oldest first
	RevenueByMonth(ctx context.Context, tenantID uuid.UUID, months int) ([]MonthlyRevenue, error)
	TopClients(ctx context.Context, tenantID uuid.UUID, limit int) ([]TopClient, error)
	ClientSummary(ctx context.Context, tenantID, clientID uuid.UUID) (*ClientSummary, error)
}

type analyticsService struct {
	store  *repositories.Store
	clock  cache.Clock
	loc    *time.Location
	logger *zap.Logger
}

func NewAnalyticsService(store *repositories.Store, clock cache.Clock, loc *time.Location, logger *zap.Logger) AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &analyticsService{store: store, clock: clock, loc: loc, logger: logger}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func (s *analyticsService) Dashboard(ctx context.Context, tenantID uuid.UUID) (*DashboardStats, error) {
	now := s.clock.Now().In(s.loc)
	thisMonth := monthStart(now)
	lastMonth := thisMonth.AddDate(0, -1, 0)
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, s.loc)
	nextMonth := thisMonth.AddDate(0, 1, 0)

	stats := &DashboardStats{}
	g, ctx := errgroup.WithContext(ctx)

	sum := func(filter repositories.InvoiceFilter, total *float64, count *int64) func() error {
		return func() error {
			res, err := s.store.Invoices.Sum(ctx, tenantID, filter)
			if err != nil {
				return err
			}
			*total = billing.Round2(res.Total)
			if count != nil {
				*count = res.Count
			}
			return nil
		}
	}
	g.Go(sum(repositories.PaidBetween(thisMonth, nextMonth), &stats.RevenueThisMonth, nil))
	g.Go(sum(repositories.PaidBetween(lastMonth, thisMonth), &stats.RevenueLastMonth, nil))
	g.Go(sum(repositories.PaidBetween(yearStart, nextMonth), &stats.RevenueThisYear, nil))
	g.Go(sum(repositories.UnpaidInvoices(), &stats.UnpaidAmount, &stats.UnpaidCount))
	g.Go(sum(repositories.OverdueInvoices(now), &stats.OverdueAmount, &stats.OverdueCount))

	g.Go(func() error {
		n, err := s.store.Clients.Count(ctx, tenantID, repositories.ClientFilter{Status: models.ClientActive})
		stats.ActiveClients = n
		return err
	})
	g.Go(func() error {
		pending := false
		_, n, err := s.store.Quotes.List(ctx, tenantID, repositories.QuoteFilter{
			Statuses:  []models.QuoteStatus{models.QuoteDraft, models.QuoteSent},
			Converted: &pending,
		}, repositories.FindOptions{Limit: 1})
		stats.PendingQuotes = n
		return err
	})
	g.Go(func() error {
		_, n, err := s.store.Tasks.List(ctx, tenantID, repositories.OpenTasks(), repositories.FindOptions{Limit: 1})
		stats.OpenTasks = n
		return err
	})
	g.Go(func() error {
		_, n, err := s.store.Tickets.List(ctx, tenantID, repositories.OpenTickets(), repositories.FindOptions{Limit: 1})
		stats.OpenTickets = n
		return err
	})
	g.Go(func() error {
		subs, _, err := s.store.Subscriptions.List(ctx, tenantID,
			repositories.SubscriptionFilter{Status: models.SubscriptionActive},
			repositories.FindOptions{Limit: 1000})
		if err != nil {
			return err
		}
		var mrr float64
		for i := range subs {
			mrr += subs[i].MonthlyAmount()
		}
		stats.MonthlyRecurring = billing.Round2(mrr)
		return nil
	})
	g.Go(func() error {
		accounts, err := s.store.BankAccounts.ListByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		var total float64
		for _, a := range accounts {
			total += a.CurrentBalance
		}
		stats.TreasuryBalance = billing.Round2(total)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}

func (s *analyticsService) RevenueByMonth(ctx context.Context, tenantID uuid.UUID, months int) ([]MonthlyRevenue, error) {
	if months <= 0 {
		months = 12
	}
	if months > 36 {
		months = 36
	}
	first := monthStart(s.clock.Now().In(s.loc)).AddDate(0, -(months - 1), 0)

	out := make([]MonthlyRevenue, months)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < months; i++ {
		from := first.AddDate(0, i, 0)
		to := from.AddDate(0, 1, 0)
		out[i].Month = from.Format("2006-01")
		g.Go(func() error {
			res, err := s.store.Invoices.Sum(ctx, tenantID, repositories.PaidBetween(from, to))
			if err != nil {
				return err
			}
			out[i].Revenue = billing.Round2(res.Total)
			out[i].Count = res.Count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("revenue by month: %w", err)
	}
	return out, nil
}

func (s *analyticsService) TopClients(ctx context.Context, tenantID uuid.UUID, limit int) ([]TopClient, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	paid := repositories.InvoiceFilter{Statuses: []models.InvoiceStatus{models.InvoicePaid}}
	rows, err := s.store.Invoices.TopClients(ctx, tenantID, paid, limit)
	if err != nil {
		return nil, fmt.Errorf("top clients: %w", err)
	}
	if len(rows) == 0 {
		return []TopClient{}, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ClientID)
	}
	clients, _, err := s.store.Clients.List(ctx, tenantID, repositories.ClientFilter{IDs: ids}, repositories.FindOptions{Limit: len(ids)})
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	names := make(map[uuid.UUID]string, len(clients))
	for i := range clients {
		names[clients[i].ID] = clients[i].DisplayName()
	}

	out := make([]TopClient, 0, len(rows))
	for _, r := range rows {
		out = append(out, TopClient{
			ClientID:   r.ClientID,
			ClientName: names[r.ClientID],
			Revenue:    billing.Round2(r.Total),
			Invoices:   r.Count,
		})
	}
	return out, nil
}

func (s *analyticsService) ClientSummary(ctx context.Context, tenantID, clientID uuid.UUID) (*ClientSummary, error) {
	client, err := s.store.Clients.FindByID(ctx, tenantID, clientID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Client")
		}
		return nil, fmt.Errorf("find client: %w", err)
	}

	sum := &ClientSummary{Client: client}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all := repositories.InvoicesForClient(clientID)
		all.Statuses = []models.InvoiceStatus{models.InvoiceSent, models.InvoicePaid, models.InvoiceOverdue}
		res, err := s.store.Invoices.Sum(ctx, tenantID, all)
		sum.TotalInvoiced, sum.InvoiceCount = billing.Round2(res.Total), res.Count
		return err
	})
	g.Go(func() error {
		paid := repositories.InvoicesForClient(clientID)
		paid.Statuses = []models.InvoiceStatus{models.InvoicePaid}
		res, err := s.store.Invoices.Sum(ctx, tenantID, paid)
		sum.TotalPaid = billing.Round2(res.Total)
		return err
	})
	g.Go(func() error {
		unpaid := repositories.UnpaidInvoices()
		unpaid.ClientID = &clientID
		res, err := s.store.Invoices.Sum(ctx, tenantID, unpaid)
		sum.UnpaidAmount = billing.Round2(res.Total)
		return err
	})
	g.Go(func() error {
		_, n, err := s.store.Quotes.List(ctx, tenantID, repositories.QuoteFilter{ClientID: &clientID}, repositories.FindOptions{Limit: 1})
		sum.QuoteCount = n
		return err
	})
	g.Go(func() error {
		open := repositories.OpenTickets()
		open.ClientID = &clientID
		_, n, err := s.store.Tickets.List(ctx, tenantID, open, repositories.FindOptions{Limit: 1})
		sum.OpenTickets = n
		return err
	})
	g.Go(func() error {
		_, n, err := s.store.Domains.List(ctx, tenantID, repositories.DomainFilter{ClientID: &clientID}, repositories.FindOptions{Limit: 1})
		sum.ActiveDomains = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("client summary: %w", err)
	}
	return sum, nil
}
