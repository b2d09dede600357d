package repositories

import (
	"context"

	"crm-gin/internal/models"

	"gorm.io/gorm"
)

type noteRepo struct {
	*crudRepo[models.Note, NoteFilter]
}

func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &noteRepo{crudRepo: newCrudRepo[models.Note, NoteFilter](db, "Links")}
}

func (r *noteRepo) CreateWithLinks(ctx context.Context, note *models.Note) error {
	return r.db.WithContext(ctx).Create(note).Error
}
