package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/contentkit/importer/internal/models"
	"go.uber.org/zap"
)

// ErrEmptyExternalID is returned when a record is constructed without an
// external id.
var ErrEmptyExternalID = errors.New("an external id must be set to construct a record")

// Options carries the importer knobs resolved once at startup.
type Options struct {
	IDPrefix         string
	AttachmentPrefix string
	FeaturedMetaKey  string
	HiddenStatus     string
	TrashStatus      string
	LogErrors        bool
	Filters          []FieldFilter
}

// Deps bundles the external collaborators. Linker and Cache may be nil.
type Deps struct {
	Content  ContentStore
	Meta     MetaStore
	Binary   BinaryStore
	Terms    TermStore
	Fields   FieldStore
	Registry Registry
	Log      ImportLog
	Linker   LocaleLinker
	Cache    IdentityCache
	Logger   *zap.Logger
}

// Importer runs the import save pipeline. One record is processed
// start-to-finish per Save call; callers that may import the same external id
// concurrently must serialize on their side.
type Importer struct {
	opts     Options
	content  ContentStore
	meta     MetaStore
	binary   BinaryStore
	terms    TermStore
	fields   FieldStore
	registry Registry
	log      ImportLog
	linker   LocaleLinker
	logger   *zap.Logger

	resolver    *Resolver
	attResolver *Resolver
}

// New creates an Importer from its collaborators.
func New(opts Options, deps Deps) *Importer {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		opts:        opts,
		content:     deps.Content,
		meta:        deps.Meta,
		binary:      deps.Binary,
		terms:       deps.Terms,
		fields:      deps.Fields,
		registry:    deps.Registry,
		log:         deps.Log,
		linker:      deps.Linker,
		logger:      logger,
		resolver:    NewResolver(deps.Meta, opts.IDPrefix, deps.Cache),
		attResolver: NewResolver(deps.Meta, opts.AttachmentPrefix, deps.Cache),
	}
}

// Resolver exposes the record identity resolver.
func (im *Importer) Resolver() *Resolver { return im.resolver }

// LatestAttempt returns the most recent log entry for an external id, or nil
// when the id has never been imported.
func (im *Importer) LatestAttempt(ctx context.Context, externalID string) (*LogEntry, error) {
	return im.log.LatestForExternalID(ctx, externalID)
}

// NewRecord constructs a record for an external id, resolving the internal id
// when a mapping already exists.
func (im *Importer) NewRecord(ctx context.Context, externalID string) (*Record, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, ErrEmptyExternalID
	}
	rec := &Record{
		externalID:    externalID,
		attachmentIDs: make(map[string]int64),
		saved:         make(map[Stage]struct{}),
	}
	id, found, err := im.resolver.Resolve(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("resolve external id %q: %w", externalID, err)
	}
	if found {
		rec.internalID = id
		rec.existed = true
	}
	return rec, nil
}

// Apply ingests a structured payload into the record, running the boundary
// field filters first.
func (im *Importer) Apply(rec *Record, p Payload) error {
	if p.Post != nil {
		pf := *p.Post
		if strings.EqualFold(p.ContentFormat, "markdown") {
			html, err := markdownFilter(pf.Content)
			if err != nil {
				return err
			}
			pf.Content = html
		}
		for _, filter := range im.opts.Filters {
			filter(&pf)
		}
		p.Post = &pf
	}
	rec.payload = p
	return nil
}

// Save validates the record, persists each facet in fixed order, and
// evaluates validity once more after persisting. A non-empty error bag at
// either gate produces a *SaveError; post-commit invalidity additionally
// triggers the rollback controller. Every attempt appends exactly one import
// log entry.
func (im *Importer) Save(ctx context.Context, rec *Record) (int64, error) {
	rec.errors = NewBag(im.resolver.Ref(rec.externalID), im.errSink())
	rec.saved = make(map[Stage]struct{})
	rec.attachmentIDs = make(map[string]int64)

	im.validate(ctx, rec)
	if !rec.errors.IsEmpty() {
		im.logAttempt(ctx, rec, LogFail)
		return 0, im.saveError(rec, RollbackNone)
	}

	im.runStages(ctx, rec)

	if !rec.errors.IsEmpty() {
		im.logAttempt(ctx, rec, LogFail)
		outcome := RollbackNone
		if rec.internalID != 0 {
			outcome = im.rollback(ctx, rec)
		}
		return 0, im.saveError(rec, outcome)
	}

	im.logAttempt(ctx, rec, LogOK)
	return rec.internalID, nil
}

// runStages executes the persistence stages in required order. Stages whose
// facet data is absent are skipped. Errors recorded by earlier stages never
// stop later stages; validity is judged once at the end.
func (im *Importer) runStages(ctx context.Context, rec *Record) {
	im.saveBase(ctx, rec)
	if rec.internalID == 0 {
		// Base creation failed; nothing can attach without an id.
		return
	}
	if len(rec.payload.Attachments) > 0 {
		im.saveAttachments(ctx, rec)
	}
	if len(rec.payload.Meta) > 0 {
		im.saveMeta(ctx, rec)
	}
	if len(rec.payload.Taxonomies) > 0 {
		im.saveTaxonomies(ctx, rec)
	}
	if len(rec.payload.Fields) > 0 {
		im.saveFields(ctx, rec)
	}
	if rec.payload.I18n != nil {
		im.saveLocale(ctx, rec)
	}
}

// saveBase persists the base fields as a create-or-update. On create the new
// internal id is captured and the identity index entries are written.
func (im *Importer) saveBase(ctx context.Context, rec *Record) {
	pf := rec.payload.Post
	if pf == nil {
		if rec.internalID == 0 {
			rec.errors.Record(ScopePost, nil, "base fields are required to create a record")
		}
		return
	}

	target := &models.ContentModel{}
	if rec.internalID != 0 {
		existing, err := im.content.Get(ctx, rec.internalID)
		if err != nil {
			rec.errors.Record(ScopePost, pf, fmt.Sprintf("load existing record: %s", err))
			return
		}
		if existing != nil {
			target = existing
		}
	}

	target.Title = pf.Title
	target.Content = pf.Content
	target.Excerpt = pf.Excerpt
	if pf.Author != 0 {
		target.AuthorID = pf.Author
	}
	if pf.Status != "" {
		target.Status = pf.Status
	}
	if pf.CommentPolicy != "" {
		target.CommentPolicy = pf.CommentPolicy
	}
	if pf.Type != "" {
		target.Type = pf.Type
	}
	if rec.parentID != nil {
		target.ParentID = rec.parentID
	}
	if pf.Order != "" {
		target.MenuOrder = rec.order
	}
	if rec.publishedAt != nil {
		target.PublishedAt = rec.publishedAt
	}
	if rec.modifiedAt != nil {
		target.UpdatedAt = *rec.modifiedAt
	}

	if rec.internalID == 0 {
		id, err := im.content.Create(ctx, target)
		if err != nil {
			rec.errors.Record(ScopePost, pf, fmt.Sprintf("create record: %s", err))
			return
		}
		rec.internalID = id
		im.identify(ctx, rec, im.resolver, ScopePost, id, rec.externalID)
		return
	}

	if err := im.content.Update(ctx, rec.internalID, target); err != nil {
		rec.errors.Record(ScopePost, pf, fmt.Sprintf("update record: %s", err))
	}
}

// identify writes the two index entries that map an internal id back to its
// external id: the bare queryable key and the prefixed, key-indexed one. The
// dual write turns a value lookup into a key lookup, which is the only
// equality query the metadata store indexes.
func (im *Importer) identify(ctx context.Context, rec *Record, res *Resolver, scope Scope, id int64, externalID string) {
	if err := im.meta.Set(ctx, id, res.IdentKey(), externalID); err != nil {
		rec.errors.Record(scope, externalID, fmt.Sprintf("write identity key: %s", err))
		return
	}
	if err := im.meta.Set(ctx, id, res.Ref(externalID), externalID); err != nil {
		rec.errors.Record(scope, externalID, fmt.Sprintf("write indexed identity key: %s", err))
	}
}

// saveAttachments resolves or imports every attachment and fills the
// attachment id map consumed by the meta and fields stages. A failed
// attachment is skipped without aborting its siblings, but leaves the stage
// incomplete.
func (im *Importer) saveAttachments(ctx context.Context, rec *Record) {
	before := rec.errors.Count(ScopeAttachment)

	for _, att := range rec.payload.Attachments {
		id, found, err := im.attResolver.Resolve(ctx, att.ExternalID)
		if err != nil {
			rec.errors.Record(ScopeAttachment, att, fmt.Sprintf("resolve attachment %q: %s", att.ExternalID, err))
			continue
		}

		if !found {
			data, err := im.binary.Fetch(ctx, att.Src)
			if err != nil {
				rec.errors.Record(ScopeAttachment, att, fmt.Sprintf("fetch attachment %q from %q: %s", att.ExternalID, att.Src, err))
				continue
			}
			id, err = im.binary.Store(ctx, data, att, rec.internalID)
			if err != nil {
				rec.errors.Record(ScopeAttachment, att, fmt.Sprintf("store attachment %q: %s", att.ExternalID, err))
				continue
			}
			im.identify(ctx, rec, im.attResolver, ScopeAttachment, id, att.ExternalID)

			if im.linker != nil && rec.payload.I18n != nil {
				if err := im.linker.LinkAttachment(ctx, id, rec.payload.I18n.Locale); err != nil {
					rec.errors.Record(ScopeAttachment, att, fmt.Sprintf("set attachment locale: %s", err))
				}
			}
		}

		// Mutable attachment fields refresh on every import.
		if err := im.binary.UpdateDetails(ctx, id, att); err != nil {
			rec.errors.Record(ScopeAttachment, att, fmt.Sprintf("update attachment %q: %s", att.ExternalID, err))
			continue
		}

		rec.attachmentIDs[im.attResolver.Ref(att.ExternalID)] = id
	}

	if rec.errors.Count(ScopeAttachment) == before {
		rec.markSaved(StageAttachments)
	}
}

// saveMeta writes every metadata pair. The reserved featured-attachment key
// resolves through the attachment id map and requires the attachments stage
// to have completed; unresolved keys are skipped with an error rather than
// written as dangling references.
func (im *Importer) saveMeta(ctx context.Context, rec *Record) {
	for key, value := range rec.payload.Meta {
		if key == im.opts.FeaturedMetaKey {
			if !rec.Saved(StageAttachments) {
				rec.errors.Record(ScopeMeta, value, fmt.Sprintf("meta key %q needs saved attachments, skipping", key))
				continue
			}
			// The value arrives as a prefixed attachment reference.
			ref, _ := value.(string)
			id, ok := rec.AttachmentID(ref)
			if !ok {
				rec.errors.Record(ScopeMeta, value, fmt.Sprintf("meta key %q references unresolved attachment %q", key, ref))
				continue
			}
			if err := im.meta.Set(ctx, rec.internalID, key, strconv.FormatInt(id, 10)); err != nil {
				rec.errors.Record(ScopeMeta, value, fmt.Sprintf("write meta key %q: %s", key, err))
			}
			continue
		}

		encoded, err := stringifyMetaValue(value)
		if err != nil {
			rec.errors.Record(ScopeMeta, value, fmt.Sprintf("encode meta key %q: %s", key, err))
			continue
		}
		if err := im.meta.Set(ctx, rec.internalID, key, encoded); err != nil {
			rec.errors.Record(ScopeMeta, value, fmt.Sprintf("write meta key %q: %s", key, err))
		}
	}
	rec.markSaved(StageMeta)
}

// saveTaxonomies resolves or creates every term, then assigns term
// relationships once per taxonomy rather than once per term.
func (im *Importer) saveTaxonomies(ctx context.Context, rec *Record) {
	grouped := make(map[string][]int64)
	order := make([]string, 0, 2)

	for _, t := range rec.payload.Taxonomies {
		id, ok := im.resolveTerm(ctx, rec, ScopeTaxonomy, t)
		if !ok {
			continue
		}
		if _, seen := grouped[t.Taxonomy]; !seen {
			order = append(order, t.Taxonomy)
		}
		grouped[t.Taxonomy] = append(grouped[t.Taxonomy], id)
	}

	for _, taxonomy := range order {
		if err := im.terms.AssignTerms(ctx, rec.internalID, taxonomy, grouped[taxonomy]); err != nil {
			rec.errors.Record(ScopeTaxonomy, taxonomy, fmt.Sprintf("assign terms for %q: %s", taxonomy, err))
		}
	}
	rec.markSaved(StageTaxonomies)
}

// resolveTerm finds a term by slug and taxonomy, creating it (after an
// optional parent slug lookup) when absent.
func (im *Importer) resolveTerm(ctx context.Context, rec *Record, scope Scope, t TermInput) (int64, bool) {
	term, err := im.terms.FindTerm(ctx, t.Taxonomy, t.Slug)
	if err != nil {
		rec.errors.Record(scope, t, fmt.Sprintf("find term %q in %q: %s", t.Slug, t.Taxonomy, err))
		return 0, false
	}
	if term != nil {
		return term.ID, true
	}

	var parentID *int64
	if t.Parent != "" {
		parent, err := im.terms.FindTerm(ctx, t.Taxonomy, t.Parent)
		if err != nil {
			rec.errors.Record(scope, t, fmt.Sprintf("find parent term %q in %q: %s", t.Parent, t.Taxonomy, err))
			return 0, false
		}
		if parent == nil {
			rec.errors.Record(scope, t, fmt.Sprintf("parent term %q not found in %q", t.Parent, t.Taxonomy))
			return 0, false
		}
		parentID = &parent.ID
	}

	created, err := im.terms.CreateTerm(ctx, &models.TermModel{
		Taxonomy:    t.Taxonomy,
		Name:        t.Name,
		Slug:        t.Slug,
		ParentID:    parentID,
		Description: t.Description,
	})
	if err != nil {
		rec.errors.Record(scope, t, fmt.Sprintf("create term %q in %q: %s", t.Slug, t.Taxonomy, err))
		return 0, false
	}
	return created.ID, true
}

// saveLocale delegates to the active locale linker. With no provider active
// the stage is a no-op.
func (im *Importer) saveLocale(ctx context.Context, rec *Record) {
	if im.linker == nil {
		return
	}
	loc := *rec.payload.I18n

	var masterID int64
	if loc.Master != "" {
		ext, ok := im.resolver.IsExternalRef(loc.Master)
		if !ok {
			rec.errors.Record(ScopeI18n, loc.Master, "master is not an external id reference")
		} else {
			id, found, err := im.resolver.Resolve(ctx, ext)
			if err != nil {
				rec.errors.Record(ScopeI18n, loc.Master, fmt.Sprintf("resolve master %q: %s", loc.Master, err))
			} else if !found {
				rec.errors.Record(ScopeI18n, loc.Master, fmt.Sprintf("master %q does not resolve to a record", loc.Master))
			} else {
				masterID = id
			}
		}
	}

	if err := im.linker.Link(ctx, rec.internalID, loc, masterID); err != nil {
		rec.errors.Record(ScopeI18n, loc, fmt.Sprintf("link locale %q: %s", loc.Locale, err))
		return
	}
	rec.markSaved(StageLocale)
}

func (im *Importer) logAttempt(ctx context.Context, rec *Record, status LogStatus) {
	data, err := rec.Snapshot()
	if err != nil {
		im.logger.Error("serialize import snapshot", zap.String("external_id", rec.externalID), zap.Error(err))
	}
	var errData string
	if !rec.errors.IsEmpty() {
		raw, err := json.Marshal(rec.errors.All())
		if err != nil {
			im.logger.Error("serialize import errors", zap.String("external_id", rec.externalID), zap.Error(err))
		} else {
			errData = string(raw)
		}
	}
	entry := &LogEntry{
		ExternalID: rec.externalID,
		InternalID: rec.internalID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Errors:     errData,
		Status:     status,
	}
	if err := im.log.Append(ctx, entry); err != nil {
		im.logger.Error("append import log", zap.String("external_id", rec.externalID), zap.Error(err))
	}
}

func (im *Importer) saveError(rec *Record, outcome RollbackOutcome) error {
	return &SaveError{
		ExternalID: rec.externalID,
		Errors:     rec.errors.All(),
		Outcome:    outcome,
	}
}

func (im *Importer) errSink() *zap.Logger {
	if im.opts.LogErrors {
		return im.logger
	}
	return nil
}

// stringifyMetaValue stores strings verbatim and JSON-encodes everything
// else.
func stringifyMetaValue(value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
