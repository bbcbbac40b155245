package importer

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
)

// runValidate runs validation alone against a fresh record and returns the
// accumulated errors by scope.
func runValidate(t *testing.T, e *env, p Payload) map[Scope][]ErrorEntry {
	t.Helper()
	rec := mustRecord(t, e, "val-1", p)
	rec.errors = NewBag(e.importer.resolver.Ref(rec.externalID), nil)
	e.importer.validate(context.Background(), rec)
	return rec.errors.All()
}

func TestValidateBase(t *testing.T) {
	tests := []struct {
		name    string
		post    PostFields
		scope   Scope
		wantErr bool
	}{
		{"valid minimal", PostFields{Title: "T"}, ScopePost, false},
		{"valid full", PostFields{Title: "T", Author: 1, Date: "2024-01-02 03:04:05", Modified: "2024-01-02 03:04:05", Status: "publish", CommentPolicy: "open", Order: "3", Type: "post"}, ScopePost, false},
		{"unknown author", PostFields{Title: "T", Author: 42}, ScopePost, true},
		{"bad date format", PostFields{Title: "T", Date: "2024/01/02"}, ScopePost, true},
		{"bad modified format", PostFields{Title: "T", Modified: "yesterday"}, ScopePost, true},
		{"unregistered status", PostFields{Title: "T", Status: "limbo"}, ScopePost, true},
		{"trash status reserved", PostFields{Title: "T", Status: "trash"}, ScopePost, true},
		{"unknown comment policy", PostFields{Title: "T", CommentPolicy: "maybe"}, ScopePost, true},
		{"order not an integer", PostFields{Title: "T", Order: json.Number("2.5")}, ScopePost, true},
		{"unregistered type", PostFields{Title: "T", Type: "widget"}, ScopePost, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			post := tt.post
			got := runValidate(t, e, Payload{Post: &post})
			if tt.wantErr && len(got[tt.scope]) == 0 {
				t.Errorf("expected an error under %q, got none", tt.scope)
			}
			if !tt.wantErr && len(got) != 0 {
				t.Errorf("unexpected errors: %v", got)
			}
		})
	}
}

func TestValidateParent(t *testing.T) {
	t.Run("external reference resolves", func(t *testing.T) {
		e := newEnv()
		parentID := mustSave(t, e, "parent-1", Payload{Post: &PostFields{Title: "P", Status: "publish"}})

		rec := mustRecord(t, e, "child-1", Payload{
			Post: &PostFields{Title: "C", Parent: "ck_id_parent-1"},
		})
		rec.errors = NewBag("ck_id_child-1", nil)
		e.importer.validate(context.Background(), rec)

		if !rec.errors.IsEmpty() {
			t.Fatalf("unexpected errors: %v", rec.errors.All())
		}
		if rec.parentID == nil || *rec.parentID != parentID {
			t.Errorf("parentID = %v, want %d", rec.parentID, parentID)
		}
	})

	t.Run("external reference does not resolve", func(t *testing.T) {
		e := newEnv()
		got := runValidate(t, e, Payload{Post: &PostFields{Title: "C", Parent: "ck_id_missing"}})
		if len(got[ScopePost]) != 1 {
			t.Errorf("post errors = %v, want one unresolved-parent error", got[ScopePost])
		}
	})

	t.Run("raw internal id exists", func(t *testing.T) {
		e := newEnv()
		parentID := mustSave(t, e, "parent-2", Payload{Post: &PostFields{Title: "P", Status: "publish"}})

		rec := mustRecord(t, e, "child-2", Payload{
			Post: &PostFields{Title: "C", Parent: strconv.FormatInt(parentID, 10)},
		})
		rec.errors = NewBag("ck_id_child-2", nil)
		e.importer.validate(context.Background(), rec)

		if !rec.errors.IsEmpty() {
			t.Fatalf("unexpected errors: %v", rec.errors.All())
		}
		if rec.parentID == nil || *rec.parentID != parentID {
			t.Errorf("parentID = %v, want %d", rec.parentID, parentID)
		}
	})

	t.Run("raw internal id missing", func(t *testing.T) {
		e := newEnv()
		got := runValidate(t, e, Payload{Post: &PostFields{Title: "C", Parent: "9999"}})
		if len(got[ScopePost]) != 1 {
			t.Errorf("post errors = %v, want one missing-parent error", got[ScopePost])
		}
	})

	t.Run("garbage parent value", func(t *testing.T) {
		e := newEnv()
		got := runValidate(t, e, Payload{Post: &PostFields{Title: "C", Parent: "not-an-id"}})
		if len(got[ScopePost]) != 1 {
			t.Errorf("post errors = %v, want one error", got[ScopePost])
		}
	})
}

func TestValidateAttachments(t *testing.T) {
	e := newEnv()
	got := runValidate(t, e, Payload{
		Attachments: []Attachment{
			{ExternalID: "", Src: "https://example.com/a.jpg"},
			{ExternalID: "img-2", Src: ""},
			{ExternalID: "img-3", Src: "https://example.com/c.jpg"},
		},
	})
	if len(got[ScopeAttachment]) != 2 {
		t.Errorf("attachment errors = %d, want 2: %v", len(got[ScopeAttachment]), got[ScopeAttachment])
	}
}

func TestValidateTaxonomiesChecksRegistrationOnce(t *testing.T) {
	e := newEnv()
	got := runValidate(t, e, Payload{
		Taxonomies: []TermInput{
			{Taxonomy: "made_up", Name: "A", Slug: "a"},
			{Taxonomy: "made_up", Name: "B", Slug: "b"},
			{Taxonomy: "", Name: "C", Slug: "c"},
		},
	})
	// One unregistered-taxonomy error despite two entries, plus one
	// incomplete-entry error.
	if len(got[ScopeTaxonomy]) != 2 {
		t.Errorf("taxonomy errors = %d, want 2: %v", len(got[ScopeTaxonomy]), got[ScopeTaxonomy])
	}
}

func TestValidateFieldsRecursesGroups(t *testing.T) {
	e := newEnv()
	got := runValidate(t, e, Payload{
		Fields: []Field{
			{Key: "ok", Type: FieldDefault, Value: "v"},
			{Key: "", Type: FieldDefault, Value: "v"},
			{Key: "grp", Type: FieldGroup, Fields: []Field{
				{Key: "", Type: FieldDefault, Value: "v"},
				{Key: "inner", Type: FieldDefault, Value: "v"},
			}},
		},
	})
	if len(got[ScopeFields]) != 2 {
		t.Errorf("field errors = %d, want 2: %v", len(got[ScopeFields]), got[ScopeFields])
	}
}

func TestValidateI18n(t *testing.T) {
	t.Run("inactive locale", func(t *testing.T) {
		e := newEnv()
		got := runValidate(t, e, Payload{I18n: &Locale{Locale: "sv"}})
		if len(got[ScopeI18n]) != 1 {
			t.Errorf("i18n errors = %v, want one inactive-locale error", got[ScopeI18n])
		}
	})

	t.Run("master must look like an external reference", func(t *testing.T) {
		e := newEnv()
		got := runValidate(t, e, Payload{I18n: &Locale{Locale: "fi", Master: "12345"}})
		if len(got[ScopeI18n]) != 1 {
			t.Errorf("i18n errors = %v, want one bad-master error", got[ScopeI18n])
		}
	})

	t.Run("no linker skips the facet", func(t *testing.T) {
		e := newEnv()
		e.importer = New(testOptions(), Deps{
			Content:  e.content,
			Meta:     e.meta,
			Binary:   e.binary,
			Terms:    e.terms,
			Fields:   e.fields,
			Registry: e.registry,
			Log:      e.log,
		})
		got := runValidate(t, e, Payload{I18n: &Locale{Locale: "anything"}})
		if len(got) != 0 {
			t.Errorf("unexpected errors without linker: %v", got)
		}
	})
}

func TestValidateAccumulatesAcrossFacets(t *testing.T) {
	e := newEnv()
	got := runValidate(t, e, Payload{
		Post: &PostFields{Title: "T", Author: 42, Date: "bad", Status: "limbo"},
		Attachments: []Attachment{
			{ExternalID: "", Src: ""},
		},
		Taxonomies: []TermInput{
			{Taxonomy: "made_up", Name: "A", Slug: "a"},
		},
		Fields: []Field{
			{Key: "", Type: FieldDefault},
		},
		I18n: &Locale{Locale: "sv", Master: "raw-id"},
	})

	total := 0
	for _, entries := range got {
		total += len(entries)
	}
	// 3 post + 2 attachment + 1 taxonomy + 1 field + 2 i18n.
	if total != 9 {
		t.Errorf("total errors = %d, want 9: %v", total, got)
	}
}
