package importer

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the exact pattern every date-valued field must parse under.
const DateLayout = "2006-01-02 15:04:05"

// validate runs every facet validator against the record. Validators only
// read their facet and write into the error bag; none of them short-circuits,
// so the final report covers every invalid field.
func (im *Importer) validate(ctx context.Context, rec *Record) {
	im.parseBase(ctx, rec)
	im.validateBase(ctx, rec)
	im.validateAttachments(rec)
	im.validateTaxonomies(ctx, rec)
	im.validateFields(rec)
	im.validateI18n(ctx, rec)
}

// parseBase parses the date, parent and order base fields into the record.
// It runs as part of validation and again when a snapshot is replayed, so a
// replayed record carries the snapshot's parsed values rather than whatever
// the failed attempt set.
func (im *Importer) parseBase(ctx context.Context, rec *Record) {
	pf := rec.payload.Post
	if pf == nil {
		return
	}

	if pf.Date != "" {
		t, err := time.Parse(DateLayout, pf.Date)
		if err != nil {
			rec.errors.Record(ScopePost, map[string]string{"field": "date", "value": pf.Date},
				fmt.Sprintf("date %q does not match pattern %q", pf.Date, DateLayout))
		} else {
			rec.publishedAt = &t
		}
	}
	if pf.Modified != "" {
		t, err := time.Parse(DateLayout, pf.Modified)
		if err != nil {
			rec.errors.Record(ScopePost, map[string]string{"field": "modified", "value": pf.Modified},
				fmt.Sprintf("modified %q does not match pattern %q", pf.Modified, DateLayout))
		} else {
			rec.modifiedAt = &t
		}
	}

	if pf.Parent != "" {
		im.parseParent(ctx, rec, pf.Parent)
	}

	if pf.Order != "" {
		n, err := pf.Order.Int64()
		if err != nil {
			rec.errors.Record(ScopePost, pf.Order.String(), fmt.Sprintf("order %q is not an integer", pf.Order.String()))
		} else {
			rec.order = int(n)
		}
	}
}

func (im *Importer) validateBase(ctx context.Context, rec *Record) {
	pf := rec.payload.Post
	if pf == nil {
		return
	}

	if pf.Author != 0 {
		exists, err := im.registry.UserExists(ctx, pf.Author)
		if err != nil {
			rec.errors.Record(ScopePost, pf.Author, fmt.Sprintf("check author: %s", err))
		} else if !exists {
			rec.errors.Record(ScopePost, pf.Author, fmt.Sprintf("author %d does not exist", pf.Author))
		}
	}

	if pf.Status != "" {
		statuses, err := im.registry.Statuses(ctx)
		if err != nil {
			rec.errors.Record(ScopePost, pf.Status, fmt.Sprintf("list statuses: %s", err))
		} else if !contains(statuses, pf.Status) {
			rec.errors.Record(ScopePost, pf.Status, fmt.Sprintf("status %q is not registered", pf.Status))
		} else if pf.Status == im.opts.TrashStatus {
			// A trashed target is never auto-resurrected by import.
			rec.errors.Record(ScopePost, pf.Status, fmt.Sprintf("status %q is reserved", pf.Status))
		}
	}

	if pf.CommentPolicy != "" {
		policies, err := im.registry.CommentPolicies(ctx)
		if err != nil {
			rec.errors.Record(ScopePost, pf.CommentPolicy, fmt.Sprintf("list comment policies: %s", err))
		} else if !contains(policies, pf.CommentPolicy) {
			rec.errors.Record(ScopePost, pf.CommentPolicy, fmt.Sprintf("comment policy %q is not allowed", pf.CommentPolicy))
		}
	}

	if pf.Type != "" {
		types, err := im.registry.Types(ctx)
		if err != nil {
			rec.errors.Record(ScopePost, pf.Type, fmt.Sprintf("list content types: %s", err))
		} else if !contains(types, pf.Type) {
			rec.errors.Record(ScopePost, pf.Type, fmt.Sprintf("type %q is not a registered content type", pf.Type))
		}
	}
}

// parseParent resolves the parent reference, which may be shaped as an
// external-id reference or a raw internal id. Unresolved in either case is an
// error.
func (im *Importer) parseParent(ctx context.Context, rec *Record, parent string) {
	if ext, ok := im.resolver.IsExternalRef(parent); ok {
		id, found, err := im.resolver.Resolve(ctx, ext)
		if err != nil {
			rec.errors.Record(ScopePost, parent, fmt.Sprintf("resolve parent %q: %s", parent, err))
			return
		}
		if !found {
			rec.errors.Record(ScopePost, parent, fmt.Sprintf("parent reference %q does not resolve", parent))
			return
		}
		rec.parentID = &id
		return
	}

	id, err := strconv.ParseInt(parent, 10, 64)
	if err != nil {
		rec.errors.Record(ScopePost, parent, fmt.Sprintf("parent %q is neither an external reference nor an internal id", parent))
		return
	}
	existing, err := im.content.Get(ctx, id)
	if err != nil {
		rec.errors.Record(ScopePost, parent, fmt.Sprintf("load parent %d: %s", id, err))
		return
	}
	if existing == nil {
		rec.errors.Record(ScopePost, parent, fmt.Sprintf("parent %d does not exist", id))
		return
	}
	rec.parentID = &id
}

func (im *Importer) validateAttachments(rec *Record) {
	for _, att := range rec.payload.Attachments {
		if att.ExternalID == "" {
			rec.errors.Record(ScopeAttachment, att, "attachment is missing an external id")
		}
		if att.Src == "" {
			rec.errors.Record(ScopeAttachment, att, fmt.Sprintf("attachment %q is missing a source url", att.ExternalID))
		}
	}
}

func (im *Importer) validateTaxonomies(ctx context.Context, rec *Record) {
	// Each taxonomy is checked once, however many entries reference it.
	seen := make(map[string]struct{})
	for _, t := range rec.payload.Taxonomies {
		if t.Taxonomy == "" || t.Slug == "" {
			rec.errors.Record(ScopeTaxonomy, t, "taxonomy entry needs both a taxonomy and a slug")
			continue
		}
		if _, ok := seen[t.Taxonomy]; ok {
			continue
		}
		seen[t.Taxonomy] = struct{}{}

		exists, err := im.registry.TaxonomyExists(ctx, t.Taxonomy)
		if err != nil {
			rec.errors.Record(ScopeTaxonomy, t, fmt.Sprintf("check taxonomy %q: %s", t.Taxonomy, err))
			continue
		}
		if !exists {
			rec.errors.Record(ScopeTaxonomy, t, fmt.Sprintf("taxonomy %q is not registered", t.Taxonomy))
		}
	}
}

func (im *Importer) validateFields(rec *Record) {
	var walk func(fields []Field)
	walk = func(fields []Field) {
		for _, f := range fields {
			if f.Key == "" {
				rec.errors.Record(ScopeFields, f, "custom field is missing a key")
				continue
			}
			if f.Type == FieldGroup {
				walk(f.Fields)
			}
		}
	}
	walk(rec.payload.Fields)
}

func (im *Importer) validateI18n(ctx context.Context, rec *Record) {
	loc := rec.payload.I18n
	if loc == nil || im.linker == nil {
		return
	}

	languages, err := im.linker.Languages(ctx)
	if err != nil {
		rec.errors.Record(ScopeI18n, loc, fmt.Sprintf("list locales: %s", err))
	} else if !contains(languages, loc.Locale) {
		rec.errors.Record(ScopeI18n, loc, fmt.Sprintf("locale %q is not active", loc.Locale))
	}

	if loc.Master != "" {
		if _, ok := im.resolver.IsExternalRef(loc.Master); !ok {
			rec.errors.Record(ScopeI18n, loc, fmt.Sprintf("master %q is not an external id reference", loc.Master))
		}
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
