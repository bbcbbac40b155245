package importer

import (
	"context"
	"fmt"
	"sync"

	"github.com/contentkit/importer/internal/models"
)

// memContent is an in-memory ContentStore. Error hooks override the default
// behavior when set.
type memContent struct {
	mu    sync.Mutex
	calls []string

	nextID  int64
	records map[int64]*models.ContentModel

	createErr func(record *models.ContentModel) error
	updateErr func(id int64) error
}

func newMemContent() *memContent {
	return &memContent{nextID: 100, records: make(map[int64]*models.ContentModel)}
}

func (m *memContent) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *memContent) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *memContent) Create(ctx context.Context, rec *models.ContentModel) (int64, error) {
	m.record("Create")
	if m.createErr != nil {
		if err := m.createErr(rec); err != nil {
			return 0, err
		}
	}
	m.nextID++
	clone := *rec
	clone.ID = m.nextID
	m.records[m.nextID] = &clone
	return m.nextID, nil
}

func (m *memContent) Update(ctx context.Context, id int64, rec *models.ContentModel) error {
	m.record("Update")
	if m.updateErr != nil {
		if err := m.updateErr(id); err != nil {
			return err
		}
	}
	clone := *rec
	clone.ID = id
	m.records[id] = &clone
	return nil
}

func (m *memContent) Get(ctx context.Context, id int64) (*models.ContentModel, error) {
	m.record("Get")
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (m *memContent) SetStatus(ctx context.Context, id int64, status string) error {
	m.record("SetStatus")
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("record %d not found", id)
	}
	rec.Status = status
	return nil
}

func (m *memContent) Delete(ctx context.Context, id int64, force bool) error {
	m.record("Delete")
	delete(m.records, id)
	return nil
}

// memMeta is an in-memory MetaStore keyed by owner id and key.
type memMeta struct {
	mu    sync.Mutex
	calls []string

	rows map[int64]map[string]string

	setErr func(ownerID int64, key string) error
}

func newMemMeta() *memMeta {
	return &memMeta{rows: make(map[int64]map[string]string)}
}

func (m *memMeta) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *memMeta) Get(ctx context.Context, ownerID int64, key string) (string, bool, error) {
	m.record("Get")
	v, ok := m.rows[ownerID][key]
	return v, ok, nil
}

func (m *memMeta) Set(ctx context.Context, ownerID int64, key, value string) error {
	m.record("Set")
	if m.setErr != nil {
		if err := m.setErr(ownerID, key); err != nil {
			return err
		}
	}
	if m.rows[ownerID] == nil {
		m.rows[ownerID] = make(map[string]string)
	}
	m.rows[ownerID][key] = value
	return nil
}

func (m *memMeta) DeleteAll(ctx context.Context, ownerID int64) error {
	m.record("DeleteAll")
	delete(m.rows, ownerID)
	return nil
}

func (m *memMeta) FindOwnerByKey(ctx context.Context, key string) (int64, bool, error) {
	m.record("FindOwnerByKey")
	var owner int64
	found := 0
	for id, kv := range m.rows {
		if _, ok := kv[key]; ok {
			owner = id
			found++
		}
	}
	switch found {
	case 0:
		return 0, false, nil
	case 1:
		return owner, true, nil
	default:
		return 0, false, ErrAmbiguousIdentity
	}
}

// memBinary is an in-memory BinaryStore backed by the content store, so
// stored attachments are real content rows like in production.
type memBinary struct {
	mu    sync.Mutex
	calls []string

	content *memContent
	sources map[string][]byte

	fetchErr func(url string) error
	storeErr func(att Attachment) error
}

func newMemBinary(content *memContent) *memBinary {
	return &memBinary{content: content, sources: make(map[string][]byte)}
}

func (m *memBinary) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *memBinary) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.record("Fetch")
	if m.fetchErr != nil {
		if err := m.fetchErr(url); err != nil {
			return nil, err
		}
	}
	if data, ok := m.sources[url]; ok {
		return data, nil
	}
	return []byte("binary:" + url), nil
}

func (m *memBinary) Store(ctx context.Context, data []byte, att Attachment, parentID int64) (int64, error) {
	m.record("Store")
	if m.storeErr != nil {
		if err := m.storeErr(att); err != nil {
			return 0, err
		}
	}
	return m.content.Create(ctx, &models.ContentModel{
		Title:    att.Title,
		Type:     "attachment",
		Status:   "publish",
		ParentID: &parentID,
		MimeType: att.MimeType,
	})
}

func (m *memBinary) UpdateDetails(ctx context.Context, id int64, att Attachment) error {
	m.record("UpdateDetails")
	rec, ok := m.content.records[id]
	if !ok {
		return fmt.Errorf("attachment %d not found", id)
	}
	rec.Title = att.Title
	rec.Content = att.Description
	rec.Excerpt = att.Caption
	return nil
}

// memTerms is an in-memory TermStore.
type memTerms struct {
	mu    sync.Mutex
	calls []string

	nextID      int64
	terms       []*models.TermModel
	assignments map[int64]map[string][]int64

	assignErr func(taxonomy string) error
}

func newMemTerms() *memTerms {
	return &memTerms{nextID: 500, assignments: make(map[int64]map[string][]int64)}
}

func (m *memTerms) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *memTerms) FindTerm(ctx context.Context, taxonomy, slug string) (*models.TermModel, error) {
	m.record("FindTerm")
	for _, t := range m.terms {
		if t.Taxonomy == taxonomy && t.Slug == slug {
			return t, nil
		}
	}
	return nil, nil
}

func (m *memTerms) CreateTerm(ctx context.Context, term *models.TermModel) (*models.TermModel, error) {
	m.record("CreateTerm")
	m.nextID++
	clone := *term
	clone.ID = m.nextID
	m.terms = append(m.terms, &clone)
	return &clone, nil
}

func (m *memTerms) AssignTerms(ctx context.Context, recordID int64, taxonomy string, termIDs []int64) error {
	m.record("AssignTerms")
	if m.assignErr != nil {
		if err := m.assignErr(taxonomy); err != nil {
			return err
		}
	}
	if m.assignments[recordID] == nil {
		m.assignments[recordID] = make(map[string][]int64)
	}
	m.assignments[recordID][taxonomy] = append([]int64(nil), termIDs...)
	return nil
}

func (m *memTerms) RemoveAll(ctx context.Context, recordID int64) error {
	m.record("RemoveAll")
	delete(m.assignments, recordID)
	return nil
}

// memFields is an in-memory FieldStore.
type memFields struct {
	mu    sync.Mutex
	calls []string

	values map[int64]map[string]interface{}
}

func newMemFields() *memFields {
	return &memFields{values: make(map[int64]map[string]interface{})}
}

func (m *memFields) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *memFields) GetField(ctx context.Context, recordID int64, key string) (string, bool, error) {
	m.record("GetField")
	v, ok := m.values[recordID][key]
	if !ok {
		return "", false, nil
	}
	return fmt.Sprint(v), true, nil
}

func (m *memFields) UpdateField(ctx context.Context, recordID int64, key string, value interface{}) error {
	m.record("UpdateField")
	if m.values[recordID] == nil {
		m.values[recordID] = make(map[string]interface{})
	}
	m.values[recordID][key] = value
	return nil
}

// memRegistry answers validation questions from fixed sets.
type memRegistry struct {
	users      map[int64]bool
	statuses   []string
	types      []string
	policies   []string
	taxonomies map[string]bool
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		users:      map[int64]bool{1: true},
		statuses:   []string{"publish", "draft", "pending", "trash"},
		types:      []string{"post", "page", "attachment"},
		policies:   []string{"open", "closed"},
		taxonomies: map[string]bool{"category": true, "post_tag": true},
	}
}

func (m *memRegistry) UserExists(ctx context.Context, id int64) (bool, error) {
	return m.users[id], nil
}

func (m *memRegistry) Statuses(ctx context.Context) ([]string, error) { return m.statuses, nil }

func (m *memRegistry) Types(ctx context.Context) ([]string, error) { return m.types, nil }

func (m *memRegistry) CommentPolicies(ctx context.Context) ([]string, error) {
	return m.policies, nil
}

func (m *memRegistry) TaxonomyExists(ctx context.Context, taxonomy string) (bool, error) {
	return m.taxonomies[taxonomy], nil
}

// memLog is an append-only in-memory ImportLog.
type memLog struct {
	mu      sync.Mutex
	entries []*LogEntry
}

func (m *memLog) Append(ctx context.Context, entry *LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *entry
	m.entries = append(m.entries, &clone)
	return nil
}

func (m *memLog) LastSuccessful(ctx context.Context, internalID int64) (*LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.InternalID == internalID && e.Status == LogOK {
			clone := *e
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memLog) LatestForExternalID(ctx context.Context, externalID string) (*LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.ExternalID == externalID {
			clone := *e
			return &clone, nil
		}
	}
	return nil, nil
}

// memLinker is an in-memory LocaleLinker tracking locale and group per id.
type memLinker struct {
	mu    sync.Mutex
	calls []string

	languages []string
	locales   map[int64]string
	groups    map[int64]int64

	linkErr error
}

func newMemLinker(languages ...string) *memLinker {
	if len(languages) == 0 {
		languages = []string{"en", "fi"}
	}
	return &memLinker{
		languages: languages,
		locales:   make(map[int64]string),
		groups:    make(map[int64]int64),
	}
}

func (m *memLinker) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *memLinker) Name() string { return "mem" }

func (m *memLinker) Languages(ctx context.Context) ([]string, error) { return m.languages, nil }

func (m *memLinker) Link(ctx context.Context, internalID int64, loc Locale, masterID int64) error {
	m.record("Link")
	if m.linkErr != nil {
		return m.linkErr
	}
	m.locales[internalID] = loc.Locale
	if masterID != 0 {
		m.groups[internalID] = masterID
	}
	return nil
}

func (m *memLinker) LinkAttachment(ctx context.Context, attachmentID int64, locale string) error {
	m.record("LinkAttachment")
	m.locales[attachmentID] = locale
	return nil
}

// memCache is an in-memory IdentityCache.
type memCache struct {
	mu   sync.Mutex
	data map[string]int64
	hits int
}

func newMemCache() *memCache { return &memCache{data: make(map[string]int64)} }

func (m *memCache) Get(ctx context.Context, key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.data[key]
	if ok {
		m.hits++
	}
	return id, ok
}

func (m *memCache) Put(ctx context.Context, key string, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = id
}

func (m *memCache) Forget(ctx context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// env bundles one importer with all of its in-memory collaborators.
type env struct {
	importer *Importer
	content  *memContent
	meta     *memMeta
	binary   *memBinary
	terms    *memTerms
	fields   *memFields
	registry *memRegistry
	log      *memLog
	linker   *memLinker
}

func newEnv() *env {
	content := newMemContent()
	e := &env{
		content:  content,
		meta:     newMemMeta(),
		binary:   newMemBinary(content),
		terms:    newMemTerms(),
		fields:   newMemFields(),
		registry: newMemRegistry(),
		log:      &memLog{},
		linker:   newMemLinker(),
	}
	e.importer = New(testOptions(), e.deps())
	return e
}

func (e *env) deps() Deps {
	return Deps{
		Content:  e.content,
		Meta:     e.meta,
		Binary:   e.binary,
		Terms:    e.terms,
		Fields:   e.fields,
		Registry: e.registry,
		Log:      e.log,
		Linker:   e.linker,
	}
}

func testOptions() Options {
	return Options{
		IDPrefix:         "ck_id_",
		AttachmentPrefix: "ck_attachment_",
		FeaturedMetaKey:  "_featured_image",
		HiddenStatus:     "draft",
		TrashStatus:      "trash",
	}
}
