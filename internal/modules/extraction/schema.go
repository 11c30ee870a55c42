package extraction

import "sort"

// Enum vocabularies offered to the model. Values outside these lists are
// accepted but reported back as suggestedNewEnumValues.
var (
	VisitingStatuses  = []string{"local", "visiting", "relocating", "remote_participant"}
	OrgTypes          = []string{"startup", "scaleup", "corporate", "agency", "nonprofit", "government", "academic", "freelance", "investor"}
	RoleCategories    = []string{"engineering", "design", "product", "marketing", "sales", "operations", "finance", "founder", "research", "data", "people", "legal"}
	RoleSubCategories = []string{
		"backend", "frontend", "fullstack", "mobile", "devops", "ml", "security",
		"ux", "ui", "brand", "graphic", "growth", "content", "performance",
		"business_development", "account_management", "analytics", "recruiting",
	}
	SeniorityLevels      = []string{"intern", "junior", "mid", "senior", "lead", "principal", "executive", "founder"}
	EngagementTypes      = []string{"full_time", "part_time", "contract", "freelance", "advisor", "cofounder", "volunteer"}
	EngagementCommitment = []string{"full", "partial", "occasional"}
	WorkModes            = []string{"remote", "hybrid", "onsite"}
	SkillLevels          = []string{"beginner", "intermediate", "advanced", "expert"}
	Industries           = []string{
		"saas", "fintech", "healthtech", "edtech", "ecommerce", "media", "gaming", "ai",
		"climate", "biotech", "real_estate", "logistics", "travel", "food", "hardware", "crypto",
	}
	Hobbies = []string{
		"running", "cycling", "climbing", "surfing", "football", "tennis", "yoga", "chess",
		"music", "photography", "cooking", "reading", "travel", "gaming", "painting", "dancing",
	}
	GoalTags = []string{
		"hiring", "job_search", "cofounder", "investment", "fundraising", "mentorship", "mentoring",
		"clients", "partnerships", "feedback", "friends", "learning", "advice",
	}
)

func stringOrNull() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

func enumOrNull(values []string) map[string]any {
	arr := make([]any, 0, len(values)+1)
	for _, v := range values {
		arr = append(arr, v)
	}
	arr = append(arr, nil)
	return map[string]any{"enum": arr}
}

func enumArray(values []string) map[string]any {
	arr := make([]any, 0, len(values))
	for _, v := range values {
		arr = append(arr, v)
	}
	return map[string]any{"type": "array", "items": map[string]any{"type": "string", "enum": arr}}
}

func stringArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func object(props map[string]any) map[string]any {
	req := make([]string, 0, len(props))
	for k := range props {
		req = append(req, k)
	}
	sort.Strings(req)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             req,
		"additionalProperties": false,
	}
}

func skillEntries(levels []string) map[string]any {
	return map[string]any{
		"type": "array",
		"items": object(map[string]any{
			"skill": stringOrNull(),
			"level": enumOrNull(levels),
		}),
	}
}

// ProfileSchema is the JSON schema of a profile document as sent to the model.
func ProfileSchema() map[string]any {
	skills := object(map[string]any{
		"hard": skillEntries(SkillLevels),
		"soft": skillEntries(SkillLevels),
	})
	role := object(map[string]any{
		"organization": object(map[string]any{
			"org_type":   enumOrNull(OrgTypes),
			"name":       stringOrNull(),
			"url":        stringOrNull(),
			"industries": enumArray(Industries),
		}),
		"category":     enumOrNull(RoleCategories),
		"sub_category": enumOrNull(RoleSubCategories),
		"title":        stringOrNull(),
		"seniority":    enumOrNull(SeniorityLevels),
		"engagement": object(map[string]any{
			"type":       enumOrNull(EngagementTypes),
			"commitment": enumOrNull(EngagementCommitment),
			"work_mode":  enumOrNull(WorkModes),
		}),
		"skills":     skills,
		"highlights": stringArray(),
		"active":     map[string]any{"type": []any{"boolean", "null"}},
	})
	out := object(map[string]any{
		"raw_input": map[string]any{"type": "string", "description": "User's free text or voice transcript"},
		"personal": object(map[string]any{
			"name":            stringOrNull(),
			"headline":        stringOrNull(),
			"visiting_status": enumOrNull(VisitingStatuses),
		}),
		"skills":      skills,
		"industries":  enumArray(Industries),
		"hobbies":     enumArray(Hobbies),
		"roles":       map[string]any{"type": "array", "items": role},
		"extra_notes": stringOrNull(),
	})
	out["$schema"] = "http://json-schema.org/draft-07/schema#"
	return out
}

// EventContextSchema covers the event-scoped goals of a participation.
func EventContextSchema() map[string]any {
	out := object(map[string]any{
		"goals": object(map[string]any{
			"looking_for": enumArray(GoalTags),
			"offering":    enumArray(GoalTags),
		}),
	})
	out["$schema"] = "http://json-schema.org/draft-07/schema#"
	return out
}
