package importer

import (
	"encoding/json"
	"time"
)

// Stage names the facets a save attempt can complete. The set grows
// monotonically during one Save call and never shrinks within an attempt.
type Stage string

const (
	StageAttachments Stage = "attachments"
	StageMeta        Stage = "meta"
	StageTaxonomies  Stage = "taxonomies"
	StageFields      Stage = "fields"
	StageLocale      Stage = "locale"
)

// Record is the in-memory aggregate for one import unit. Construct it with
// Importer.NewRecord, populate it with Importer.Apply, persist it with
// Importer.Save.
type Record struct {
	externalID string
	internalID int64
	existed    bool

	payload Payload

	// attachmentIDs maps prefixed external attachment ids to internal
	// attachment ids as the attachments stage resolves them.
	attachmentIDs map[string]int64

	errors *Bag
	saved  map[Stage]struct{}

	// set by validation
	publishedAt *time.Time
	modifiedAt  *time.Time
	parentID    *int64
	order       int
}

// ExternalID returns the caller-supplied external id. It is set exactly once,
// at construction.
func (r *Record) ExternalID() string { return r.externalID }

// InternalID returns the resolved internal id, or 0 for a record not yet
// created.
func (r *Record) InternalID() int64 { return r.internalID }

// Exists reports whether the record was already present in the store before
// this attempt.
func (r *Record) Exists() bool { return r.existed }

// Errors returns the accumulated errors of the current attempt by scope.
func (r *Record) Errors() map[Scope][]ErrorEntry {
	if r.errors == nil {
		return map[Scope][]ErrorEntry{}
	}
	return r.errors.All()
}

// Saved reports whether a stage completed during the current attempt.
func (r *Record) Saved(stage Stage) bool {
	_, ok := r.saved[stage]
	return ok
}

func (r *Record) markSaved(stage Stage) {
	r.saved[stage] = struct{}{}
}

// AttachmentID returns the internal attachment id for a prefixed external
// attachment reference, if the attachments stage resolved it.
func (r *Record) AttachmentID(ref string) (int64, bool) {
	id, ok := r.attachmentIDs[ref]
	return id, ok
}

type snapshot struct {
	ExternalID string  `json:"external_id"`
	Payload    Payload `json:"payload"`
}

// Snapshot serializes the record's payload for the import log. Snapshots
// round-trip through the same payload decoder, so a rollback re-save ingests
// them like any caller input.
func (r *Record) Snapshot() (string, error) {
	data, err := json.Marshal(snapshot{ExternalID: r.externalID, Payload: r.payload})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
