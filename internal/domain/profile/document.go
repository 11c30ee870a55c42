package profile

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Skill struct {
	Skill string  `json:"skill"`
	Level *string `json:"level"`
}

type SkillSet struct {
	Hard []Skill `json:"hard"`
	Soft []Skill `json:"soft"`
}

type Personal struct {
	Name           *string `json:"name"`
	Headline       *string `json:"headline"`
	VisitingStatus *string `json:"visiting_status"`
}

type Organization struct {
	OrgType    *string  `json:"org_type"`
	Name       *string  `json:"name"`
	URL        *string  `json:"url"`
	Industries []string `json:"industries"`
}

type Engagement struct {
	Type       *string `json:"type"`
	Commitment *string `json:"commitment"`
	WorkMode   *string `json:"work_mode"`
}

type Role struct {
	Organization Organization `json:"organization"`
	Category     *string      `json:"category"`
	SubCategory  *string      `json:"sub_category"`
	Title        *string      `json:"title"`
	Seniority    *string      `json:"seniority"`
	Engagement   Engagement   `json:"engagement"`
	Skills       SkillSet     `json:"skills"`
	Highlights   []string     `json:"highlights"`
	Active       *bool        `json:"active"`
}

// Document is the structured profile extracted from a user's spoken intros.
// RawInput is append-only: each processed transcript is joined with "; ".
type Document struct {
	RawInput   string   `json:"raw_input"`
	Personal   Personal `json:"personal"`
	Skills     SkillSet `json:"skills"`
	Industries []string `json:"industries"`
	Hobbies    []string `json:"hobbies"`
	Roles      []Role   `json:"roles"`
	ExtraNotes *string  `json:"extra_notes"`
}

// NewDocument returns an initial document: empty collections, null scalars.
func NewDocument() Document {
	d := Document{}
	d.Normalize()
	return d
}

// Normalize replaces nil slices with empty ones so the stored JSON never
// carries null where a list is expected.
func (d *Document) Normalize() {
	d.Skills.normalize()
	d.Industries = nonNil(d.Industries)
	d.Hobbies = nonNil(d.Hobbies)
	if d.Roles == nil {
		d.Roles = []Role{}
	}
	for i := range d.Roles {
		r := &d.Roles[i]
		r.Organization.Industries = nonNil(r.Organization.Industries)
		r.Skills.normalize()
		r.Highlights = nonNil(r.Highlights)
	}
}

func (s *SkillSet) normalize() {
	if s.Hard == nil {
		s.Hard = []Skill{}
	}
	if s.Soft == nil {
		s.Soft = []Skill{}
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// AppendRawInput extends raw_input, never replacing earlier text.
func (d *Document) AppendRawInput(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if strings.TrimSpace(d.RawInput) == "" {
		d.RawInput = text
		return
	}
	d.RawInput = d.RawInput + "; " + text
}

func (d Document) MarshalJSONBytes() ([]byte, error) {
	d.Normalize()
	return json.Marshal(d)
}

// AsMap returns the document as generic JSON, the shape the validation rules
// and LLM prompts operate on.
func (d Document) AsMap() map[string]any {
	raw, err := d.MarshalJSONBytes()
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// DisplayName is the profile's personal name, or "" when unknown.
func (d Document) DisplayName() string {
	if d.Personal.Name == nil {
		return ""
	}
	return strings.TrimSpace(*d.Personal.Name)
}

var (
	topLevelArrays  = []string{"industries", "hobbies", "roles"}
	topLevelObjects = []string{"personal", "skills"}
	roleArrays      = []string{"highlights"}
	roleObjects     = []string{"organization", "engagement", "skills"}
)

// StructureError reports a JSON document whose shape does not match the
// profile document layout.
type StructureError struct {
	Path string
	Want string
	Got  string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("profile document: %s must be %s, got %s", e.Path, e.Want, e.Got)
}

// ParseDocument decodes raw JSON into a Document after checking that known
// containers kept their kind (arrays stay arrays, objects stay objects).
func ParseDocument(raw []byte) (Document, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Document{}, fmt.Errorf("profile document: %w", err)
	}
	top, ok := generic.(map[string]any)
	if !ok {
		return Document{}, &StructureError{Path: "$", Want: "object", Got: kindOf(generic)}
	}
	if err := CheckStructure(top); err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("profile document: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

// CheckStructure validates container kinds of a generic profile map.
func CheckStructure(top map[string]any) error {
	if err := expectKinds(top, "", topLevelArrays, "array"); err != nil {
		return err
	}
	if err := expectKinds(top, "", topLevelObjects, "object"); err != nil {
		return err
	}
	if skills, ok := top["skills"].(map[string]any); ok {
		if err := expectKinds(skills, "skills.", []string{"hard", "soft"}, "array"); err != nil {
			return err
		}
	}
	roles, _ := top["roles"].([]any)
	for i, r := range roles {
		path := fmt.Sprintf("roles[%d]", i)
		role, ok := r.(map[string]any)
		if !ok {
			return &StructureError{Path: path, Want: "object", Got: kindOf(r)}
		}
		if err := expectKinds(role, path+".", roleArrays, "array"); err != nil {
			return err
		}
		if err := expectKinds(role, path+".", roleObjects, "object"); err != nil {
			return err
		}
		if org, ok := role["organization"].(map[string]any); ok {
			if err := expectKinds(org, path+".organization.", []string{"industries"}, "array"); err != nil {
				return err
			}
		}
	}
	return nil
}

func expectKinds(m map[string]any, prefix string, keys []string, want string) error {
	for _, k := range keys {
		v, present := m[k]
		if !present || v == nil {
			continue
		}
		if got := kindOf(v); got != want {
			return &StructureError{Path: prefix + k, Want: want, Got: got}
		}
	}
	return nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
