package repositories

import (
	"context"
	"time"

	"crm-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type invoiceRepo struct {
	*crudRepo[models.Invoice, InvoiceFilter]
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepo{crudRepo: newCrudRepo[models.Invoice, InvoiceFilter](db, "Client")}
}

// FindByID loads lines ordered by position
func (r *invoiceRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.scoped(ctx, tenantID).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepo) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.scoped(ctx, tenantID).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("LOWER(number) = LOWER(?)", number).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepo) CreateWithItems(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Omit("Client").Create(invoice).Error
}

func (r *invoiceRepo) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Unscoped().Where("invoice_id = ?", invoiceID).Delete(&models.InvoiceItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].InvoiceID = invoiceID
	}
	return db.Create(&items).Error
}

func (r *invoiceRepo) NextSequence(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error) {
	return nextSequence(ctx, r.db, &models.Invoice{}, "invoice", tenantID, at.Year(), "issue_date")
}

func (r *invoiceRepo) Sum(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) (InvoiceSum, error) {
	var sum InvoiceSum
	err := filter.Apply(r.db.WithContext(ctx).Model(&models.Invoice{}).Where("tenant_id = ?", tenantID)).
		Select("COALESCE(SUM(total_ttc), 0) AS total, COUNT(*) AS count").
		Scan(&sum).Error
	return sum, err
}

func (r *invoiceRepo) TopClients(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter, limit int) ([]ClientRevenue, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []ClientRevenue
	err := filter.Apply(r.db.WithContext(ctx).Model(&models.Invoice{}).Where("tenant_id = ?", tenantID)).
		Select("client_id, COALESCE(SUM(total_ttc), 0) AS total, COUNT(*) AS count").
		Group("client_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *invoiceRepo) MarkOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("tenant_id = ? AND status = ? AND due_date IS NOT NULL AND due_date < ?", tenantID, models.InvoiceSent, now).
		Update("status", models.InvoiceOverdue)
	return res.RowsAffected, res.Error
}
