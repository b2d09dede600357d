package repositories

import (
	"context"
	"time"

	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type quoteRepo struct {
	*crudRepo[models.Quote, QuoteFilter]
}

func NewQuoteRepository(db *gorm.DB) QuoteRepository {
	return &quoteRepo{crudRepo: newCrudRepo[models.Quote, QuoteFilter](db, "Client")}
}

func (r *quoteRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	if err := r.scoped(ctx, tenantID).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&quote, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *quoteRepo) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Quote, error) {
	var quote models.Quote
	if err := r.scoped(ctx, tenantID).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("LOWER(number) = LOWER(?)", number).
		First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *quoteRepo) CreateWithItems(ctx context.Context, quote *models.Quote) error {
	return r.db.WithContext(ctx).Omit("Client").Create(quote).Error
}

func (r *quoteRepo) NextSequence(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error) {
	return nextSequence(ctx, r.db, &models.Quote{}, "quote", tenantID, at.Year(), "issue_date")
}

// LinkInvoice is a conditional update, so two concurrent conversions cannot
// both succeed.
func (r *quoteRepo) LinkInvoice(ctx context.Context, tenantID, quoteID, invoiceID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.Quote{}).
		Where("tenant_id = ? AND id = ? AND invoice_id IS NULL", tenantID, quoteID).
		Updates(map[string]any{"invoice_id": invoiceID, "status": models.QuoteAccepted})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrAlreadyConverted, "Ce devis a déjà été converti en facture")
	}
	return nil
}
