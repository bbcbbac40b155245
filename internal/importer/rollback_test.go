package importer

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestFailedReimportRestoresLastGoodState(t *testing.T) {
	e := newEnv()

	id := mustSave(t, e, "ext-r1", Payload{
		Post: &PostFields{Title: "Good", Status: "publish"},
		Meta: map[string]interface{}{"color": "blue"},
		Taxonomies: []TermInput{
			{Taxonomy: "category", Name: "News", Slug: "news"},
		},
	})

	// Second attempt passes validation but breaks during the attachment
	// stage, after new meta has already been written.
	e.binary.fetchErr = func(url string) error { return fmt.Errorf("gone") }

	rec := mustRecord(t, e, "ext-r1", Payload{
		Post: &PostFields{Title: "Broken", Status: "publish"},
		Meta: map[string]interface{}{"color": "red"},
		Attachments: []Attachment{
			{ExternalID: "img-r", Src: "https://example.com/r.jpg"},
		},
	})
	_, err := e.importer.Save(context.Background(), rec)
	saveErr := asSaveError(t, err)

	if saveErr.Outcome != RollbackRestored {
		t.Fatalf("outcome = %v, want RollbackRestored", saveErr.Outcome)
	}

	// The snapshot's meta won over the failed attempt's writes.
	if got := e.meta.rows[id]["color"]; got != "blue" {
		t.Errorf("meta color after restore = %q, want blue", got)
	}
	// Identity rows survive the wipe-and-replay.
	if got := e.meta.rows[id]["ck_id"]; got != "ext-r1" {
		t.Errorf("bare identity key after restore = %q, want ext-r1", got)
	}
	if got := e.meta.rows[id]["ck_id_ext-r1"]; got != "ext-r1" {
		t.Errorf("prefixed identity key after restore = %q, want ext-r1", got)
	}
	// Term assignments were replayed from the snapshot.
	if got := len(e.terms.assignments[id]["category"]); got != 1 {
		t.Errorf("category assignments after restore = %d, want 1", got)
	}
	// The base record carries the snapshot's fields again.
	if got := e.content.records[id].Title; got != "Good" {
		t.Errorf("title after restore = %q, want Good", got)
	}
	if got := e.content.records[id].Status; got != "publish" {
		t.Errorf("status after restore = %q, want publish", got)
	}

	// The external id still resolves after the round trip.
	resolved, found, err := e.importer.Resolver().Resolve(context.Background(), "ext-r1")
	if err != nil || !found || resolved != id {
		t.Errorf("Resolve after restore = (%d, %v, %v), want (%d, true, nil)", resolved, found, err, id)
	}
}

func TestRollbackReplayReparsesBaseFields(t *testing.T) {
	e := newEnv()

	id := mustSave(t, e, "ext-r4", Payload{
		Post: &PostFields{
			Title:  "Good",
			Status: "publish",
			Date:   "2020-01-01 00:00:00",
			Order:  "7",
		},
	})

	e.binary.fetchErr = func(url string) error { return fmt.Errorf("gone") }
	rec := mustRecord(t, e, "ext-r4", Payload{
		Post: &PostFields{
			Title:  "Broken",
			Status: "publish",
			Date:   "2025-12-31 23:59:59",
			Order:  "99",
		},
		Attachments: []Attachment{
			{ExternalID: "img-r4", Src: "https://example.com/r4.jpg"},
		},
	})
	_, err := e.importer.Save(context.Background(), rec)
	if saveErr := asSaveError(t, err); saveErr.Outcome != RollbackRestored {
		t.Fatalf("outcome = %v, want RollbackRestored", saveErr.Outcome)
	}

	restored := e.content.records[id]
	if restored.PublishedAt == nil {
		t.Fatal("published date lost in restore")
	}
	want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if !restored.PublishedAt.Equal(want) {
		t.Errorf("published date after restore = %s, want %s", restored.PublishedAt, want)
	}
	if restored.MenuOrder != 7 {
		t.Errorf("menu order after restore = %d, want 7", restored.MenuOrder)
	}
	if restored.Title != "Good" {
		t.Errorf("title after restore = %q, want Good", restored.Title)
	}
}

func TestFailedFirstImportHidesRecord(t *testing.T) {
	e := newEnv()
	e.binary.fetchErr = func(url string) error { return fmt.Errorf("gone") }

	rec := mustRecord(t, e, "ext-r2", Payload{
		Post: &PostFields{Title: "T", Status: "publish"},
		Attachments: []Attachment{
			{ExternalID: "img-x", Src: "https://example.com/x.jpg"},
		},
	})
	_, err := e.importer.Save(context.Background(), rec)
	saveErr := asSaveError(t, err)

	if saveErr.Outcome != RollbackHidden {
		t.Fatalf("outcome = %v, want RollbackHidden", saveErr.Outcome)
	}
	id := e.content.nextID
	if got := e.content.records[id].Status; got != "draft" {
		t.Errorf("status = %q, want hidden status draft", got)
	}
}

func TestValidationFailureDoesNotRollBack(t *testing.T) {
	e := newEnv()

	id := mustSave(t, e, "ext-r3", Payload{
		Post: &PostFields{Title: "Good", Status: "publish"},
	})

	rec := mustRecord(t, e, "ext-r3", Payload{
		Post: &PostFields{Title: "Bad", Status: "nosuch"},
	})
	_, err := e.importer.Save(context.Background(), rec)
	saveErr := asSaveError(t, err)

	if saveErr.Outcome != RollbackNone {
		t.Errorf("outcome = %v, want RollbackNone", saveErr.Outcome)
	}
	if got := e.content.records[id].Title; got != "Good" {
		t.Errorf("title = %q, want Good (untouched)", got)
	}
	if got := e.content.records[id].Status; got != "publish" {
		t.Errorf("status = %q, want publish (untouched)", got)
	}
}

func TestDeleteByExternalIDTrashesByDefault(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	id := mustSave(t, e, "ext-d1", Payload{
		Post: &PostFields{Title: "T", Status: "publish"},
	})

	found, err := e.importer.DeleteByExternalID(ctx, "ext-d1", false)
	if err != nil || !found {
		t.Fatalf("DeleteByExternalID = (%v, %v), want (true, nil)", found, err)
	}
	if got := e.content.records[id].Status; got != "trash" {
		t.Errorf("status = %q, want trash", got)
	}
	// Meta stays: the record can be resurrected out of trash.
	if got := e.meta.rows[id]["ck_id"]; got != "ext-d1" {
		t.Errorf("identity key removed on trash: %q", got)
	}
}

func TestDeleteByExternalIDForceWipes(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	id := mustSave(t, e, "ext-d2", Payload{
		Post: &PostFields{Title: "T", Status: "publish"},
		Meta: map[string]interface{}{"color": "blue"},
		Taxonomies: []TermInput{
			{Taxonomy: "category", Name: "News", Slug: "news"},
		},
	})

	found, err := e.importer.DeleteByExternalID(ctx, "ext-d2", true)
	if err != nil || !found {
		t.Fatalf("DeleteByExternalID = (%v, %v), want (true, nil)", found, err)
	}
	if _, ok := e.content.records[id]; ok {
		t.Error("record still present after forced delete")
	}
	if len(e.meta.rows[id]) != 0 {
		t.Errorf("meta rows remain after forced delete: %v", e.meta.rows[id])
	}
	if len(e.terms.assignments[id]) != 0 {
		t.Errorf("term assignments remain after forced delete: %v", e.terms.assignments[id])
	}
}

func TestForceDeleteDropsCachedIdentity(t *testing.T) {
	e := newEnv()
	cache := newMemCache()
	e.importer = New(testOptions(), Deps{
		Content:  e.content,
		Meta:     e.meta,
		Binary:   e.binary,
		Terms:    e.terms,
		Fields:   e.fields,
		Registry: e.registry,
		Log:      e.log,
		Cache:    cache,
	})
	ctx := context.Background()

	mustSave(t, e, "ext-d3", Payload{Post: &PostFields{Title: "T", Status: "publish"}})

	if _, err := e.importer.DeleteByExternalID(ctx, "ext-d3", true); err != nil {
		t.Fatalf("DeleteByExternalID: %v", err)
	}
	if _, ok := cache.data["ck_id_ext-d3"]; ok {
		t.Error("cache still maps a purged record")
	}
}

func TestDeleteByExternalIDUnknownID(t *testing.T) {
	e := newEnv()

	found, err := e.importer.DeleteByExternalID(context.Background(), "never-seen", false)
	if err != nil {
		t.Fatalf("DeleteByExternalID: %v", err)
	}
	if found {
		t.Error("found = true for an id that was never imported")
	}
}
