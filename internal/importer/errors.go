package importer

import (
	"fmt"

	"go.uber.org/zap"
)

// Scope groups accumulated errors by the record facet that produced them.
type Scope string

const (
	ScopePost       Scope = "post"
	ScopeMeta       Scope = "meta"
	ScopeTaxonomy   Scope = "taxonomy"
	ScopeFields     Scope = "fields"
	ScopeI18n       Scope = "i18n"
	ScopeAttachment Scope = "attachment"
)

// ErrorEntry is one accumulated error with the offending input attached.
type ErrorEntry struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Bag accumulates import errors grouped by scope over one import attempt.
// A non-empty bag marks the record invalid; the pipeline never short-circuits
// on it, so the final report is complete.
type Bag struct {
	ref    string
	scopes map[Scope][]ErrorEntry
	sink   *zap.Logger
}

// NewBag creates an error bag for one attempt. ref is the record's prefixed
// external id, prepended to every message for traceability. sink is an
// optional diagnostic logger; pass nil to disable.
func NewBag(ref string, sink *zap.Logger) *Bag {
	return &Bag{
		ref:    ref,
		scopes: make(map[Scope][]ErrorEntry),
		sink:   sink,
	}
}

// Record appends an error under scope.
func (b *Bag) Record(scope Scope, data interface{}, message string) {
	entry := ErrorEntry{
		Message: fmt.Sprintf("(%s) %s", b.ref, message),
		Data:    data,
	}
	b.scopes[scope] = append(b.scopes[scope], entry)

	if b.sink != nil {
		b.sink.Warn("import error",
			zap.String("scope", string(scope)),
			zap.String("message", entry.Message),
		)
	}
}

// All returns the accumulated errors by scope.
func (b *Bag) All() map[Scope][]ErrorEntry { return b.scopes }

// IsEmpty reports whether no error has been recorded.
func (b *Bag) IsEmpty() bool { return len(b.scopes) == 0 }

// Count returns the number of entries recorded under scope.
func (b *Bag) Count(scope Scope) int { return len(b.scopes[scope]) }

// RollbackOutcome describes what the rollback controller did after a failed
// attempt.
type RollbackOutcome int

const (
	// RollbackNone means nothing was persisted, so nothing needed undoing.
	RollbackNone RollbackOutcome = iota
	// RollbackRestored means the record was restored from its last
	// successful import snapshot.
	RollbackRestored
	// RollbackHidden means no prior successful import existed, so the
	// record was flipped to the hidden status instead.
	RollbackHidden
)

// SaveError is returned by Save when a record is invalid before commit or
// turns invalid after commit. It carries the full error map so callers can
// report per-field, per-scope diagnostics.
type SaveError struct {
	ExternalID string
	Errors     map[Scope][]ErrorEntry
	Outcome    RollbackOutcome
}

func (e *SaveError) Error() string {
	switch e.Outcome {
	case RollbackRestored:
		return fmt.Sprintf("import of %q failed after commit; previous state restored", e.ExternalID)
	case RollbackHidden:
		return fmt.Sprintf("import of %q failed with no prior successful import; record hidden", e.ExternalID)
	default:
		return fmt.Sprintf("import data for %q is not valid", e.ExternalID)
	}
}
