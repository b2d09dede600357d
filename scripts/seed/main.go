//go:build ignore

// ===========================================================================
// Development seed data: one tenant, its owner, a few clients and documents
// Run: go run scripts/seed/main.go
// ===========================================================================

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"crm-gin/internal/billing"
	"crm-gin/internal/cache"
	"crm-gin/internal/config"
	"crm-gin/internal/database"
	"crm-gin/internal/integrations/slack"
	"crm-gin/internal/mail"
	"crm-gin/internal/models"
	"crm-gin/internal/realtime"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"
	"crm-gin/pkg/logger"

	"go.uber.org/zap"
)

const (
	tenantSlug    = "demo"
	ownerEmail    = "admin@demo.fr"
	ownerPassword = "password123"
)

func main() {
	fmt.Println("Seeding database...")

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zapLog, err := logger.New(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
	})
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database, zapLog)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	store := repositories.NewStore(db)

	// =========================================================================
	// 1. Tenant
	// =========================================================================
	if existing, err := store.Tenants.FindBySlug(ctx, tenantSlug); err == nil {
		fmt.Printf("Tenant %q already exists (ID: %s), nothing to do\n", tenantSlug, existing.ID)
		os.Exit(0)
	}

	tenant := &models.Tenant{
		Name:     "Démo Conseil",
		Slug:     tenantSlug,
		IsActive: true,
		Settings: models.TenantSettings{
			SEPA: models.SEPASettings{CreditorName: "Démo Conseil", IBAN: "FR7630006000011234567890189", BIC: "AGRIFRPP"},
		},
	}
	if err := store.Tenants.Create(ctx, tenant); err != nil {
		log.Fatalf("create tenant: %v", err)
	}
	fmt.Printf("Created tenant %s (ID: %s)\n", tenant.Name, tenant.ID)

	// =========================================================================
	// 2. Owner
	// =========================================================================
	owner := &models.User{Email: ownerEmail, Name: "Administrateur", Role: models.RoleOwner, IsActive: true}
	owner.TenantID = tenant.ID
	if err := owner.SetPassword(ownerPassword); err != nil {
		log.Fatalf("hash password: %v", err)
	}
	if err := store.Users.Create(ctx, owner); err != nil {
		log.Fatalf("create owner: %v", err)
	}
	fmt.Printf("Created owner %s / %s\n", ownerEmail, ownerPassword)

	// =========================================================================
	// 3. Clients, catalogue, domains
	// =========================================================================
	clients := []*models.Client{
		{CompanyName: "Dupont SARL", ContactFirstName: "Jean", ContactLastName: "Dupont", Email: "jean@dupont.fr", City: "Lyon", Status: models.ClientActive},
		{CompanyName: "Martin & Fils", ContactFirstName: "Claire", ContactLastName: "Martin", Email: "claire@martin-fils.fr", City: "Nantes", Status: models.ClientActive},
		{CompanyName: "Boulangerie Leroy", Email: "contact@leroy.fr", City: "Lille", Status: models.ClientProspect},
	}
	for _, c := range clients {
		c.TenantID = tenant.ID
		if err := store.Clients.Create(ctx, c); err != nil {
			log.Fatalf("create client: %v", err)
		}
	}

	for _, s := range []*models.Service{
		{Name: "Journée de conseil", UnitPriceHT: 650, VATRate: 20, Unit: "jour", IsActive: true},
		{Name: "Maintenance site web", UnitPriceHT: 90, VATRate: 20, Unit: "mois", IsActive: true},
	} {
		s.TenantID = tenant.ID
		if err := store.Services.Create(ctx, s); err != nil {
			log.Fatalf("create service: %v", err)
		}
	}

	expires := time.Now().AddDate(0, 0, 20)
	domain := &models.Domain{ClientID: &clients[0].ID, Name: "dupont-sarl.fr", Registrar: "ovh", ExpiresAt: &expires}
	domain.TenantID = tenant.ID
	if err := store.Domains.Create(ctx, domain); err != nil {
		log.Fatalf("create domain: %v", err)
	}
	fmt.Printf("Created %d clients, 2 services, 1 domain\n", len(clients))

	// =========================================================================
	// 4. Invoices, through the service so numbering and totals are real
	// =========================================================================
	nop := zap.NewNop()
	settings := services.NewSettingsService(store.Tenants, cache.MustNew[*models.Tenant](8, time.Minute, nil), nop)
	mailer := mail.NewMailer(settings, nil, nop)
	notifier := services.NewNotifier(settings, slack.New(), realtime.NewNoopPublisher(), nop)
	invoices := services.NewInvoiceService(store, settings, mailer, notifier, cache.SystemClock, nop)

	issued := time.Now().AddDate(0, -2, 0)
	due := issued.AddDate(0, 0, 30)
	overdue, err := invoices.Create(ctx, tenant.ID, services.CreateInvoiceInput{
		ClientID:  clients[0].ID,
		IssueDate: &issued,
		DueDate:   &due,
		Lines:     []billing.Line{{Description: "Journée de conseil", Quantity: 10, UnitPrice: 80}},
	})
	if err != nil {
		log.Fatalf("create invoice: %v", err)
	}
	sent := models.InvoiceSent
	if _, err := invoices.Update(ctx, tenant.ID, overdue.ID, services.UpdateInvoiceInput{Status: &sent}); err != nil {
		log.Fatalf("send invoice: %v", err)
	}
	if _, err := invoices.RefreshOverdue(ctx, tenant.ID); err != nil {
		log.Fatalf("refresh overdue: %v", err)
	}

	if _, err := invoices.Create(ctx, tenant.ID, services.CreateInvoiceInput{
		ClientID: clients[1].ID,
		Lines: []billing.Line{
			{Description: "Maintenance site web", Quantity: 3, UnitPrice: 90},
			{Description: "Formation", Quantity: 1, UnitPrice: 450},
		},
	}); err != nil {
		log.Fatalf("create invoice: %v", err)
	}

	fmt.Println("Seed completed")
}
