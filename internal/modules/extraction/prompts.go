package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/intromatch-backend/internal/domain/profile"
)

const extractSystemPrompt = `You are a data extraction assistant. Extract structured information from the text and format it according to the provided JSON schema.

INSTRUCTIONS:
1. Extract all information from the text that fits the schema structure.
2. For enum fields, match the text to one of the predefined values whenever possible.
3. If no predefined value fits, you may use a new value, but you MUST also list it under "suggestedNewEnumValues".
4. Fill every schema field the text gives information for.
5. Use null (or an empty array) when the text does not mention a field.
6. Return valid JSON only.

RESPONSE FORMAT:
{
  "extractedData": { ... },
  "suggestedNewEnumValues": { "fieldName": "suggestedValue" }
}`

const mergeSystemPrompt = `You are a data merging assistant. Merge "complementaryUpdates" into "currentProfile" and return one consolidated JSON object.

RULES:
a. A null, empty or less specific value in the updates never overwrites a populated field of the current profile.
b. A newer, more specific or corrected non-empty scalar in the updates replaces the current value.
c. Free text fields (notes, descriptions) are combined by appending the new text on a new line unless the update is clearly a fuller replacement.
d. Arrays are merged: add new unique items, and when an update item matches an existing one by its natural key (skill name, organization name and title, plain value) update that item in place.
e. Fields present only in the updates are added.
f. Apply these rules at every level of nesting, and keep the structure of the inputs.

Respond ONLY with the merged JSON object, without explanations or markdown.`

const matchReasonSystemPrompt = `You explain why two people at a networking event should meet.
Write one or two short sentences addressed to the first person about the second person.
Mention concrete overlaps or complementary needs. Do not invent facts. Return plain text only.`

func extractUserPrompt(text string, schema map[string]any) (string, error) {
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TEXT TO ANALYZE:\n%s\n\nJSON SCHEMA:\n%s", strings.TrimSpace(text), raw), nil
}

func mergeUserPrompt(current, updates map[string]any) (string, error) {
	cur, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return "", err
	}
	upd, err := json.MarshalIndent(updates, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CURRENT PROFILE:\n%s\n\nCOMPLEMENTARY UPDATES:\n%s\n\nMERGED PROFILE (JSON):\n", cur, upd), nil
}

func matchReasonUserPrompt(a, b profile.Condensed) (string, error) {
	ra, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("FIRST PERSON:\n%s\n\nSECOND PERSON:\n%s\n\nREASON:", ra, rb), nil
}

// stripCodeFences removes a surrounding markdown fence (``` or ```json).
func stripCodeFences(src string) string {
	s := strings.TrimSpace(src)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	body := lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		body = lines[1 : len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}
