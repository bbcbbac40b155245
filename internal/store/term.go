package store

import (
	"context"
	"errors"

	"github.com/contentkit/importer/internal/models"
	"gorm.io/gorm"
)

// TermStore persists taxonomy terms and term relationships.
type TermStore struct {
	db *gorm.DB
}

func NewTermStore(db *gorm.DB) *TermStore {
	return &TermStore{db: db}
}

// FindTerm looks up a term by taxonomy and slug. Returns nil when absent.
func (s *TermStore) FindTerm(ctx context.Context, taxonomy, slug string) (*models.TermModel, error) {
	var term models.TermModel
	err := s.db.WithContext(ctx).
		Where("taxonomy = ? AND slug = ?", taxonomy, slug).
		First(&term).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &term, nil
}

// CreateTerm inserts a new term.
func (s *TermStore) CreateTerm(ctx context.Context, term *models.TermModel) (*models.TermModel, error) {
	if err := s.db.WithContext(ctx).Create(term).Error; err != nil {
		return nil, err
	}
	return term, nil
}

// AssignTerms replaces the record's relationships within one taxonomy by the
// given term ids, one batch write per taxonomy.
func (s *TermStore) AssignTerms(ctx context.Context, recordID int64, taxonomy string, termIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("content_id = ? AND term_id IN (?)", recordID,
				tx.Model(&models.TermModel{}).Select("id").Where("taxonomy = ?", taxonomy),
			).
			Delete(&models.TermRelationshipModel{}).Error
		if err != nil {
			return err
		}

		if len(termIDs) == 0 {
			return nil
		}
		rows := make([]models.TermRelationshipModel, 0, len(termIDs))
		for _, id := range termIDs {
			rows = append(rows, models.TermRelationshipModel{ContentID: recordID, TermID: id})
		}
		return tx.Create(&rows).Error
	})
}

// RemoveAll deletes every term relationship of a record.
func (s *TermStore) RemoveAll(ctx context.Context, recordID int64) error {
	return s.db.WithContext(ctx).
		Where("content_id = ?", recordID).
		Delete(&models.TermRelationshipModel{}).Error
}
