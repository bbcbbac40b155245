package importer

import (
	"context"
	"fmt"
)

// saveFields persists the custom-field facet. Each top-level field is
// resolved into a full value tree first and written once; group members that
// fail resolution are skipped while their siblings survive.
func (im *Importer) saveFields(ctx context.Context, rec *Record) {
	for _, f := range rec.payload.Fields {
		value, ok := im.resolveField(ctx, rec, f)
		if !ok {
			continue
		}
		if err := im.fields.UpdateField(ctx, rec.internalID, f.Key, value); err != nil {
			rec.errors.Record(ScopeFields, f, fmt.Sprintf("write field %q: %s", f.Key, err))
		}
	}
	rec.markSaved(StageFields)
}

// resolveField returns the resolved value for one field. Image references go
// through the attachment id map, taxonomy values create and assign terms like
// the taxonomies stage scoped to this field, and groups recurse.
func (im *Importer) resolveField(ctx context.Context, rec *Record, f Field) (interface{}, bool) {
	switch f.Type {
	case FieldImage:
		ref, _ := f.Value.(string)
		id, ok := rec.AttachmentID(ref)
		if !ok {
			rec.errors.Record(ScopeFields, f, fmt.Sprintf("field %q references unresolved attachment %q", f.Key, ref))
			return nil, false
		}
		return id, true

	case FieldTaxonomy:
		grouped := make(map[string][]int64)
		ids := make([]int64, 0, len(f.Terms))
		for _, t := range f.Terms {
			id, ok := im.resolveTerm(ctx, rec, ScopeFields, t)
			if !ok {
				continue
			}
			ids = append(ids, id)
			grouped[t.Taxonomy] = append(grouped[t.Taxonomy], id)
		}
		for taxonomy, termIDs := range grouped {
			if err := im.terms.AssignTerms(ctx, rec.internalID, taxonomy, termIDs); err != nil {
				rec.errors.Record(ScopeFields, f, fmt.Sprintf("assign terms for field %q: %s", f.Key, err))
			}
		}
		return ids, true

	case FieldGroup:
		group := make(map[string]interface{}, len(f.Fields))
		for _, sub := range f.Fields {
			value, ok := im.resolveField(ctx, rec, sub)
			if !ok {
				continue
			}
			group[sub.Key] = value
		}
		return group, true

	default:
		return f.Value, true
	}
}
