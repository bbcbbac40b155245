package store

import (
	"context"

	"github.com/contentkit/importer/internal/config"
	"github.com/contentkit/importer/internal/models"
	"gorm.io/gorm"
)

// Registry answers the validators' questions about what the target store has
// registered. Statuses, types, taxonomies and comment policies come from
// startup configuration; authors are checked against the users table.
type Registry struct {
	db  *gorm.DB
	cfg config.ImportConfig
}

func NewRegistry(db *gorm.DB, cfg config.ImportConfig) *Registry {
	return &Registry{db: db, cfg: cfg}
}

func (r *Registry) UserExists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserModel{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

func (r *Registry) Statuses(context.Context) ([]string, error) {
	return r.cfg.Statuses, nil
}

func (r *Registry) Types(context.Context) ([]string, error) {
	return r.cfg.Types, nil
}

func (r *Registry) CommentPolicies(context.Context) ([]string, error) {
	return r.cfg.CommentPolicies, nil
}

func (r *Registry) TaxonomyExists(_ context.Context, taxonomy string) (bool, error) {
	for _, t := range r.cfg.Taxonomies {
		if t == taxonomy {
			return true, nil
		}
	}
	return false, nil
}
