package repositories

import (
	"context"
	"errors"

	"crm-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ===========================================================================
// Shared repository types
// ===========================================================================

// FindOptions controls paging, ordering and eager loading of list queries
type FindOptions struct {
	Offset   int
	Limit    int
	OrderBy  string
	OrderDir string
	Preloads []string
}

// SetDefaults fills in paging and ordering defaults
func (o *FindOptions) SetDefaults() {
	if o.Limit == 0 {
		o.Limit = 20
	}
	if o.OrderBy == "" {
		o.OrderBy = "created_at"
	}
	if o.OrderDir != "asc" {
		o.OrderDir = "desc"
	}
}

// GetOrderClause returns the ORDER BY clause
func (o *FindOptions) GetOrderClause() string {
	return o.OrderBy + " " + o.OrderDir
}

// Filter is a typed query restriction. Every list method takes one concrete
// filter struct instead of a free-form condition map.
type Filter interface {
	Apply(q *gorm.DB) *gorm.DB
}

// Repository is the tenant scoped CRUD surface shared by all aggregates
type Repository[T any] interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*T, error)
	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// ListRepository adds filtered listing with a total count
type ListRepository[T any, F Filter] interface {
	Repository[T]
	List(ctx context.Context, tenantID uuid.UUID, filter F, opts FindOptions) ([]T, int64, error)
}

// IsNotFound reports a missing row
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// ===========================================================================
// Generic GORM implementation
// ===========================================================================

type crudRepo[T any, F Filter] struct {
	db       *gorm.DB
	preloads []string
}

func newCrudRepo[T any, F Filter](db *gorm.DB, preloads ...string) *crudRepo[T, F] {
	return &crudRepo[T, F]{db: db, preloads: preloads}
}

func (r *crudRepo[T, F]) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	for _, p := range r.preloads {
		q = q.Preload(p)
	}
	return q
}

func (r *crudRepo[T, F]) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*T, error) {
	var entity T
	if err := r.scoped(ctx, tenantID).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *crudRepo[T, F]) Create(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

// Update saves the row itself, associations are managed explicitly
func (r *crudRepo[T, F]) Update(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(entity).Error
}

func (r *crudRepo[T, F]) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *crudRepo[T, F]) List(ctx context.Context, tenantID uuid.UUID, filter F, opts FindOptions) ([]T, int64, error) {
	opts.SetDefaults()

	var items []T
	var total int64

	// Session makes the filtered query reusable for both count and find
	query := filter.Apply(r.db.WithContext(ctx).Model(new(T)).Where("tenant_id = ?", tenantID)).
		Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	for _, p := range append(r.preloads, opts.Preloads...) {
		query = query.Preload(p)
	}
	if err := query.Order(opts.GetOrderClause()).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// nextSequence increments the yearly counter of a document kind. The first
// number of a year continues after the documents already stored. Inside a
// transaction the counter row stays locked until commit, so concurrent
// callers get distinct numbers.
func nextSequence(ctx context.Context, db *gorm.DB, model any, kind string, tenantID uuid.UUID, year int, dateColumn string) (int64, error) {
	db = db.WithContext(ctx)

	var existing int64
	err := db.Unscoped().Model(model).
		Where("tenant_id = ?", tenantID).
		Where(dateColumn+" >= ? AND "+dateColumn+" < ?", yearStart(year), yearStart(year+1)).
		Count(&existing).Error
	if err != nil {
		return 0, err
	}

	seq := models.DocumentSequence{TenantID: tenantID, Kind: kind, Year: year, Value: existing + 1}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "kind"}, {Name: "year"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("document_sequences.value + 1")}),
	}).Create(&seq).Error
	if err != nil {
		return 0, err
	}

	err = db.Model(&models.DocumentSequence{}).
		Where("tenant_id = ? AND kind = ? AND year = ?", tenantID, kind, year).
		Select("value").
		Scan(&seq.Value).Error
	return seq.Value, err
}
