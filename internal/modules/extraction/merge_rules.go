package extraction

import (
	"encoding/json"
	"strings"

	"github.com/yungbote/intromatch-backend/internal/domain/profile"
)

// MergeDocuments merges updates into current without a model: null and empty
// values never overwrite, scalars are replaced by non-empty updates, notes are
// newline-joined and arrays are merged by natural key.
func MergeDocuments(current, updates profile.Document) profile.Document {
	current.Normalize()
	updates.Normalize()

	out := profile.Document{
		RawInput: mergeRawInput(current.RawInput, updates.RawInput),
		Personal: profile.Personal{
			Name:           scalar(current.Personal.Name, updates.Personal.Name),
			Headline:       scalar(current.Personal.Headline, updates.Personal.Headline),
			VisitingStatus: scalar(current.Personal.VisitingStatus, updates.Personal.VisitingStatus),
		},
		Skills:     mergeSkillSet(current.Skills, updates.Skills),
		Industries: unionStrings(current.Industries, updates.Industries),
		Hobbies:    unionStrings(current.Hobbies, updates.Hobbies),
		Roles:      mergeRoles(current.Roles, updates.Roles),
		ExtraNotes: joinText(current.ExtraNotes, updates.ExtraNotes),
	}
	out.Normalize()
	return out
}

// IsEmptyUpdate reports whether a document carries nothing to merge.
func IsEmptyUpdate(d profile.Document) bool {
	return isEmptyValue(d.AsMap())
}

func mergeRawInput(cur, upd string) string {
	cur, upd = strings.TrimSpace(cur), strings.TrimSpace(upd)
	switch {
	case upd == "" || upd == cur:
		return cur
	case cur == "" || strings.HasPrefix(upd, cur):
		return upd
	case strings.Contains(cur, upd):
		return cur
	default:
		return cur + "; " + upd
	}
}

func scalar(cur, upd *string) *string {
	if upd != nil && strings.TrimSpace(*upd) != "" {
		v := strings.TrimSpace(*upd)
		return &v
	}
	return cur
}

func scalarBool(cur, upd *bool) *bool {
	if upd != nil {
		return upd
	}
	return cur
}

func joinText(cur, upd *string) *string {
	if upd == nil || strings.TrimSpace(*upd) == "" {
		return cur
	}
	u := strings.TrimSpace(*upd)
	if cur == nil || strings.TrimSpace(*cur) == "" {
		return &u
	}
	c := strings.TrimSpace(*cur)
	if strings.Contains(c, u) {
		return &c
	}
	if strings.HasPrefix(u, c) {
		return &u
	}
	joined := c + "\n" + u
	return &joined
}

func unionStrings(cur, upd []string) []string {
	out := make([]string, 0, len(cur)+len(upd))
	seen := map[string]bool{}
	for _, list := range [][]string{cur, upd} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			k := strings.ToLower(v)
			if v == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

func mergeSkills(cur, upd []profile.Skill) []profile.Skill {
	out := append([]profile.Skill{}, cur...)
	index := map[string]int{}
	for i, s := range out {
		index[strings.ToLower(strings.TrimSpace(s.Skill))] = i
	}
	for _, s := range upd {
		k := strings.ToLower(strings.TrimSpace(s.Skill))
		if k == "" {
			continue
		}
		if i, ok := index[k]; ok {
			out[i].Level = scalar(out[i].Level, s.Level)
			continue
		}
		index[k] = len(out)
		out = append(out, s)
	}
	return out
}

func mergeSkillSet(cur, upd profile.SkillSet) profile.SkillSet {
	return profile.SkillSet{Hard: mergeSkills(cur.Hard, upd.Hard), Soft: mergeSkills(cur.Soft, upd.Soft)}
}

func roleKey(r profile.Role) string {
	org, title := "", ""
	if r.Organization.Name != nil {
		org = *r.Organization.Name
	}
	if r.Title != nil {
		title = *r.Title
	}
	return roleIdentity(org, title)
}

// roleIdentity keys a role on its organization so a corrected title updates
// the same entry. Title only identifies roles that name no organization.
func roleIdentity(org, title string) string {
	org = strings.ToLower(strings.TrimSpace(org))
	if org != "" {
		return "org:" + org
	}
	title = strings.ToLower(strings.TrimSpace(title))
	if title != "" {
		return "title:" + title
	}
	return ""
}

func mergeRoles(cur, upd []profile.Role) []profile.Role {
	out := append([]profile.Role{}, cur...)
	index := map[string]int{}
	for i, r := range out {
		if k := roleKey(r); k != "" {
			index[k] = i
		}
	}
	for _, r := range upd {
		k := roleKey(r)
		if i, ok := index[k]; ok && k != "" {
			out[i] = mergeRole(out[i], r)
			continue
		}
		if k == "" && isEmptyRole(r) {
			continue
		}
		if k != "" {
			index[k] = len(out)
		}
		out = append(out, r)
	}
	return out
}

func mergeRole(cur, upd profile.Role) profile.Role {
	return profile.Role{
		Organization: profile.Organization{
			OrgType:    scalar(cur.Organization.OrgType, upd.Organization.OrgType),
			Name:       scalar(cur.Organization.Name, upd.Organization.Name),
			URL:        scalar(cur.Organization.URL, upd.Organization.URL),
			Industries: unionStrings(cur.Organization.Industries, upd.Organization.Industries),
		},
		Category:    scalar(cur.Category, upd.Category),
		SubCategory: scalar(cur.SubCategory, upd.SubCategory),
		Title:       scalar(cur.Title, upd.Title),
		Seniority:   scalar(cur.Seniority, upd.Seniority),
		Engagement: profile.Engagement{
			Type:       scalar(cur.Engagement.Type, upd.Engagement.Type),
			Commitment: scalar(cur.Engagement.Commitment, upd.Engagement.Commitment),
			WorkMode:   scalar(cur.Engagement.WorkMode, upd.Engagement.WorkMode),
		},
		Skills:     mergeSkillSet(cur.Skills, upd.Skills),
		Highlights: unionStrings(cur.Highlights, upd.Highlights),
		Active:     scalarBool(cur.Active, upd.Active),
	}
}

func isEmptyRole(r profile.Role) bool {
	raw, err := json.Marshal(r)
	if err != nil {
		return false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	return isEmptyValue(m)
}

// isEmptyValue treats null, blank strings, and arrays or objects holding only
// empty values as absent. Booleans and numbers are always present.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		for _, inner := range t {
			if !isEmptyValue(inner) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, inner := range t {
			if !isEmptyValue(inner) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// preservePopulated overlays merged onto base so that anything populated in
// base survives a model reply that dropped or blanked it.
func preservePopulated(base, merged map[string]any) map[string]any {
	out := make(map[string]any, len(merged))
	for k, v := range merged {
		out[k] = v
	}
	for k, bv := range base {
		if isEmptyValue(bv) {
			if _, ok := out[k]; !ok {
				out[k] = bv
			}
			continue
		}
		mv, ok := merged[k]
		if !ok || isEmptyValue(mv) {
			out[k] = bv
			continue
		}
		switch b := bv.(type) {
		case map[string]any:
			if m, ok := mv.(map[string]any); ok {
				out[k] = preservePopulated(b, m)
			}
		case []any:
			if m, ok := mv.([]any); ok {
				out[k] = preserveItems(b, m)
			}
		}
	}
	return out
}

func preserveItems(base, merged []any) []any {
	out := append([]any{}, merged...)
	seen := map[string]bool{}
	for _, item := range merged {
		seen[itemKey(item)] = true
	}
	for _, item := range base {
		k := itemKey(item)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, item)
	}
	return out
}

// itemKey is the natural key used to recognise the same array element.
func itemKey(item any) string {
	switch t := item.(type) {
	case string:
		return "s:" + strings.ToLower(strings.TrimSpace(t))
	case map[string]any:
		if s, ok := t["skill"].(string); ok {
			return "skill:" + strings.ToLower(strings.TrimSpace(s))
		}
		org, hasOrg := t["organization"].(map[string]any)
		title, hasTitle := t["title"].(string)
		if hasOrg || hasTitle {
			name, _ := org["name"].(string)
			if k := roleIdentity(name, title); k != "" {
				return "role:" + k
			}
		}
	}
	raw, _ := json.Marshal(item)
	return "json:" + string(raw)
}
