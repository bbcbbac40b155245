package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// fieldKeyPrefix marks metadata rows managed by the custom-fields store, so
// plain metadata and field storage never collide on a key.
const fieldKeyPrefix = "field_"

// FieldStore keeps custom field values in the metadata table, JSON-encoded,
// keyed by field key and record id.
type FieldStore struct {
	meta *MetaStore
}

func NewFieldStore(db *gorm.DB) *FieldStore {
	return &FieldStore{meta: NewMetaStore(db)}
}

// GetField returns the raw JSON value stored for key on recordID.
func (s *FieldStore) GetField(ctx context.Context, recordID int64, key string) (string, bool, error) {
	return s.meta.Get(ctx, recordID, fieldKeyPrefix+key)
}

// UpdateField stores the resolved value for key on recordID, last write
// wins.
func (s *FieldStore) UpdateField(ctx context.Context, recordID int64, key string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode field %q: %w", key, err)
	}
	return s.meta.Set(ctx, recordID, fieldKeyPrefix+key, string(encoded))
}
