package repositories

import (
	"context"
	"time"

	"crm-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ticketRepo struct {
	*crudRepo[models.Ticket, TicketFilter]
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepo{crudRepo: newCrudRepo[models.Ticket, TicketFilter](db, "Client")}
}

func (r *ticketRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.scoped(ctx, tenantID).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&ticket, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepo) AddMessage(ctx context.Context, msg *models.TicketMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *ticketRepo) NextSequence(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error) {
	return nextSequence(ctx, r.db, &models.Ticket{}, "ticket", tenantID, at.Year(), "created_at")
}
