package profile

// Condensed is the reduced view sent to the LLM when explaining a match.
type Condensed struct {
	Name       string   `json:"name,omitempty"`
	Headline   string   `json:"headline,omitempty"`
	Industries []string `json:"industries,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	Hobbies    []string `json:"hobbies,omitempty"`
}

const condensedMaxSkills = 8

func (d Document) Condense() Condensed {
	c := Condensed{
		Name:       d.DisplayName(),
		Headline:   deref(d.Personal.Headline),
		Industries: d.Industries,
		Hobbies:    d.Hobbies,
	}
	for _, s := range append(append([]Skill{}, d.Skills.Hard...), d.Skills.Soft...) {
		if len(c.Skills) >= condensedMaxSkills {
			break
		}
		if s.Skill != "" {
			c.Skills = append(c.Skills, s.Skill)
		}
	}
	for _, r := range d.Roles {
		label := deref(r.Title)
		if org := deref(r.Organization.Name); org != "" {
			if label == "" {
				label = org
			} else {
				label += " @ " + org
			}
		}
		if label != "" {
			c.Roles = append(c.Roles, label)
		}
	}
	return c
}

// EmbeddingText is the text representation indexed for similarity search.
func (d Document) EmbeddingText() string {
	return d.RawInput
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
