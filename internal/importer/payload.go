package importer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/yuin/goldmark"
)

// Payload is the structured input for one import unit. Every section is
// optional; absent sections are simply not processed. Representation is
// decided here, at the boundary, so the pipeline never branches on shape.
type Payload struct {
	Post          *PostFields            `json:"post,omitempty"`
	Attachments   []Attachment           `json:"attachments,omitempty"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
	Taxonomies    []TermInput            `json:"taxonomies,omitempty"`
	Fields        []Field                `json:"fields,omitempty"`
	I18n          *Locale                `json:"i18n,omitempty"`
	ContentFormat string                 `json:"content_format,omitempty"` // "" | "markdown"
}

// PostFields carries the base fields of a content record. Date values stay
// raw strings until validation parses them.
type PostFields struct {
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	Excerpt       string      `json:"excerpt"`
	Author        int64       `json:"author,omitempty"`
	Date          string      `json:"date,omitempty"`
	Modified      string      `json:"modified,omitempty"`
	Status        string      `json:"status,omitempty"`
	CommentPolicy string      `json:"comment_policy,omitempty"`
	Parent        string      `json:"parent,omitempty"` // external-id reference or raw internal id
	Order         json.Number `json:"order,omitempty"`
	Type          string      `json:"type,omitempty"`
}

// Attachment describes one externally hosted binary to import.
type Attachment struct {
	ExternalID  string `json:"id"`
	MimeType    string `json:"mime_type,omitempty"`
	Src         string `json:"src"`
	Title       string `json:"title,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Description string `json:"description,omitempty"`
	AltText     string `json:"alt_text,omitempty"`
}

// TermInput is one taxonomy term assignment. Missing terms are created.
type TermInput struct {
	Taxonomy    string `json:"taxonomy"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Parent      string `json:"parent,omitempty"` // parent term slug
	Description string `json:"description,omitempty"`
}

// Locale carries the record's locale facet.
type Locale struct {
	Locale string `json:"locale"`
	Master string `json:"master,omitempty"` // external-id-shaped reference
}

// FieldType discriminates custom field values.
type FieldType string

const (
	FieldDefault  FieldType = "default"
	FieldImage    FieldType = "image"
	FieldTaxonomy FieldType = "taxonomy"
	FieldGroup    FieldType = "group"
)

// Field is one custom field entry. Group fields recurse through Fields;
// the other types populate Value.
type Field struct {
	Key    string
	Type   FieldType
	Value  interface{}
	Terms  []TermInput
	Fields []Field
}

type rawField struct {
	Key   string          `json:"key"`
	Type  FieldType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON decodes the value per declared type so downstream code works
// with one representation per type.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw rawField
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		raw.Type = FieldDefault
	}

	f.Key = raw.Key
	f.Type = raw.Type

	switch raw.Type {
	case FieldGroup:
		if len(raw.Value) > 0 {
			if err := json.Unmarshal(raw.Value, &f.Fields); err != nil {
				return fmt.Errorf("field %q: decode group value: %w", raw.Key, err)
			}
		}
	case FieldTaxonomy:
		if len(raw.Value) > 0 {
			if err := json.Unmarshal(raw.Value, &f.Terms); err != nil {
				return fmt.Errorf("field %q: decode taxonomy value: %w", raw.Key, err)
			}
		}
	case FieldImage:
		var id string
		if len(raw.Value) > 0 {
			if err := json.Unmarshal(raw.Value, &id); err != nil {
				return fmt.Errorf("field %q: decode image value: %w", raw.Key, err)
			}
		}
		f.Value = id
	case FieldDefault:
		if len(raw.Value) > 0 {
			if err := json.Unmarshal(raw.Value, &f.Value); err != nil {
				return fmt.Errorf("field %q: decode value: %w", raw.Key, err)
			}
		}
	default:
		return fmt.Errorf("field %q: unknown type %q", raw.Key, raw.Type)
	}
	return nil
}

// MarshalJSON restores the wire shape so import log snapshots round-trip
// through the same decoder.
func (f Field) MarshalJSON() ([]byte, error) {
	raw := struct {
		Key   string      `json:"key"`
		Type  FieldType   `json:"type"`
		Value interface{} `json:"value,omitempty"`
	}{Key: f.Key, Type: f.Type}

	switch f.Type {
	case FieldGroup:
		raw.Value = f.Fields
	case FieldTaxonomy:
		raw.Value = f.Terms
	default:
		raw.Value = f.Value
	}
	return json.Marshal(raw)
}

type payloadAlias struct {
	Post          *PostFields            `json:"post,omitempty"`
	Attachments   []Attachment           `json:"attachments,omitempty"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
	Taxonomies    []TermInput            `json:"taxonomies,omitempty"`
	Fields        []Field                `json:"fields,omitempty"`
	CustomFields  []Field                `json:"custom_fields,omitempty"`
	ACF           []Field                `json:"acf,omitempty"`
	I18n          *Locale                `json:"i18n,omitempty"`
	LocaleSection *Locale                `json:"locale,omitempty"`
	ContentFormat string                 `json:"content_format,omitempty"`
}

// UnmarshalJSON accepts the section aliases callers historically used:
// "acf"/"custom_fields" for the fields section and "locale" for i18n.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var alias payloadAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	p.Post = alias.Post
	p.Attachments = alias.Attachments
	p.Meta = alias.Meta
	p.Taxonomies = alias.Taxonomies
	p.ContentFormat = alias.ContentFormat

	p.Fields = alias.Fields
	if p.Fields == nil {
		p.Fields = alias.CustomFields
	}
	if p.Fields == nil {
		p.Fields = alias.ACF
	}

	p.I18n = alias.I18n
	if p.I18n == nil {
		p.I18n = alias.LocaleSection
	}
	return nil
}

// FieldFilter transforms a base field value at ingestion time, before
// validation sees it.
type FieldFilter func(p *PostFields)

// markdownFilter renders markdown content to HTML when the payload declares
// content_format: markdown.
func markdownFilter(content string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
