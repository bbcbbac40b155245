package importer

import (
	"context"
	"time"

	"github.com/contentkit/importer/internal/models"
)

// ContentStore persists base content records.
type ContentStore interface {
	Create(ctx context.Context, record *models.ContentModel) (int64, error)
	Update(ctx context.Context, id int64, record *models.ContentModel) error
	Get(ctx context.Context, id int64) (*models.ContentModel, error)
	SetStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64, force bool) error
}

// MetaStore is the generic key-value collaborator. FindOwnerByKey is the
// key-equality scan the identity scheme depends on; it must return
// ErrAmbiguousIdentity when more than one owner carries the key.
type MetaStore interface {
	Get(ctx context.Context, ownerID int64, key string) (string, bool, error)
	Set(ctx context.Context, ownerID int64, key, value string) error
	DeleteAll(ctx context.Context, ownerID int64) error
	FindOwnerByKey(ctx context.Context, key string) (int64, bool, error)
}

// BinaryStore fetches attachment sources and persists them as attachment
// records under a parent content record.
type BinaryStore interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Store(ctx context.Context, data []byte, att Attachment, parentID int64) (int64, error)
	UpdateDetails(ctx context.Context, id int64, att Attachment) error
}

// TermStore persists taxonomy terms and their assignments. FindTerm returns
// nil when the term does not exist.
type TermStore interface {
	FindTerm(ctx context.Context, taxonomy, slug string) (*models.TermModel, error)
	CreateTerm(ctx context.Context, term *models.TermModel) (*models.TermModel, error)
	AssignTerms(ctx context.Context, recordID int64, taxonomy string, termIDs []int64) error
	RemoveAll(ctx context.Context, recordID int64) error
}

// FieldStore is the custom-fields collaborator, keyed by field key and
// record id.
type FieldStore interface {
	GetField(ctx context.Context, recordID int64, key string) (string, bool, error)
	UpdateField(ctx context.Context, recordID int64, key string, value interface{}) error
}

// Registry answers validation questions about what the target store
// currently has registered.
type Registry interface {
	UserExists(ctx context.Context, id int64) (bool, error)
	Statuses(ctx context.Context) ([]string, error)
	Types(ctx context.Context) ([]string, error)
	CommentPolicies(ctx context.Context) ([]string, error)
	TaxonomyExists(ctx context.Context, taxonomy string) (bool, error)
}

// LocaleLinker groups records across languages under a shared translation
// group. One implementation is active per process; it is selected at startup
// and injected, never discovered at runtime.
type LocaleLinker interface {
	Name() string
	Languages(ctx context.Context) ([]string, error)
	// Link sets the record's locale and, when a master reference resolves,
	// merges the record into the master's translation group. Existing group
	// entries win for locales this call does not set.
	Link(ctx context.Context, internalID int64, loc Locale, masterID int64) error
	// LinkAttachment propagates the record's locale to a stored attachment.
	LinkAttachment(ctx context.Context, attachmentID int64, locale string) error
}

// LogStatus marks an import attempt outcome.
type LogStatus string

const (
	LogOK   LogStatus = models.ImportStatusOK
	LogFail LogStatus = models.ImportStatusFail
)

// LogEntry is one row of the append-only import history. Errors carries the
// attempt's serialized per-scope error report; it is empty on clean attempts.
type LogEntry struct {
	ExternalID string
	InternalID int64
	Timestamp  time.Time
	Data       string
	Errors     string
	Status     LogStatus
}

// ImportLog appends attempt history and serves the rollback controller's
// last-known-good queries plus the per-record error report lookup.
type ImportLog interface {
	Append(ctx context.Context, entry *LogEntry) error
	// LastSuccessful returns the most recent OK entry for internalID, or
	// nil when none exists.
	LastSuccessful(ctx context.Context, internalID int64) (*LogEntry, error)
	// LatestForExternalID returns the most recent entry for externalID
	// regardless of status, or nil when the id has never been imported.
	LatestForExternalID(ctx context.Context, externalID string) (*LogEntry, error)
}

// IdentityCache is an optional read-through cache in front of the identity
// resolver's key scan.
type IdentityCache interface {
	Get(ctx context.Context, key string) (int64, bool)
	Put(ctx context.Context, key string, id int64)
	Forget(ctx context.Context, key string)
}
