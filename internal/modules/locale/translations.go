package locale

import (
	"context"
	"errors"
	"fmt"

	"github.com/contentkit/importer/internal/config"
	"github.com/contentkit/importer/internal/importer"
	"github.com/contentkit/importer/internal/models"
	"gorm.io/gorm"
)

// TranslationsLinker groups records across languages in the translations
// table. The group id is the internal id of the group's master record.
type TranslationsLinker struct {
	db        *gorm.DB
	languages []string
}

func NewTranslationsLinker(db *gorm.DB, languages []string) *TranslationsLinker {
	return &TranslationsLinker{db: db, languages: languages}
}

func (l *TranslationsLinker) Name() string { return "translations" }

// Languages returns the active locale codes.
func (l *TranslationsLinker) Languages(context.Context) ([]string, error) {
	return l.languages, nil
}

// Link sets the record's locale and, when a master is given, merges the
// record into the master's translation group. Entries already present for
// other locales stay untouched: existing wins on conflict for locales this
// call does not set.
func (l *TranslationsLinker) Link(ctx context.Context, internalID int64, loc importer.Locale, masterID int64) error {
	err := l.db.WithContext(ctx).
		Model(&models.ContentModel{}).
		Where("id = ?", internalID).
		UpdateColumn("locale", loc.Locale).Error
	if err != nil {
		return fmt.Errorf("set locale of %d: %w", internalID, err)
	}

	if masterID == 0 {
		return nil
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Stale membership of this record in any group goes first, so a
		// re-link under a new master or locale never leaves two rows.
		err := tx.Where("content_id = ? AND NOT (group_id = ? AND locale = ?)", internalID, masterID, loc.Locale).
			Delete(&models.TranslationModel{}).Error
		if err != nil {
			return err
		}

		var row models.TranslationModel
		err = tx.Where("group_id = ? AND locale = ?", masterID, loc.Locale).First(&row).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return tx.Create(&models.TranslationModel{
				GroupID:   masterID,
				Locale:    loc.Locale,
				ContentID: internalID,
			}).Error
		}
		return tx.Model(&row).UpdateColumn("content_id", internalID).Error
	})
}

// LinkAttachment propagates the record's locale to a stored attachment.
func (l *TranslationsLinker) LinkAttachment(ctx context.Context, attachmentID int64, locale string) error {
	if locale == "" {
		return nil
	}
	return l.db.WithContext(ctx).
		Model(&models.ContentModel{}).
		Where("id = ?", attachmentID).
		UpdateColumn("locale", locale).Error
}

// Select resolves the configured locale provider once at startup. A "none"
// provider yields a nil linker, which turns the locale stage into a no-op.
func Select(cfg config.LocaleConfig, db *gorm.DB) (importer.LocaleLinker, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "translations":
		return NewTranslationsLinker(db, cfg.Languages), nil
	default:
		return nil, fmt.Errorf("unknown locale provider %q", cfg.Provider)
	}
}
