package repositories

import (
	"context"
	"strings"

	"crm-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type clientRepo struct {
	*crudRepo[models.Client, ClientFilter]
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepo{crudRepo: newCrudRepo[models.Client, ClientFilter](db)}
}

// FindByName prefers an exact company match, then the shortest company
// name containing the query, then a contact name match.
func (r *clientRepo) FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*models.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var client models.Client
	lower := strings.ToLower(name)

	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND LOWER(company_name) = ?", tenantID, lower).
		First(&client).Error
	if err == nil {
		return &client, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	err = ClientFilter{Search: name}.Apply(r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)).
		Order("LENGTH(company_name) ASC").
		First(&client).Error
	if err == nil {
		return &client, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	// "Jean Dupont" against separate first/last name columns
	err = r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("LOWER(contact_first_name || ' ' || contact_last_name) LIKE ?", likePattern(name)).
		First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepo) Count(ctx context.Context, tenantID uuid.UUID, filter ClientFilter) (int64, error) {
	var total int64
	err := filter.Apply(r.db.WithContext(ctx).Model(&models.Client{}).Where("tenant_id = ?", tenantID)).
		Count(&total).Error
	return total, err
}
