// Package extraction turns free text into profile documents and merges them
// using a text-generation model.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/domain/events"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// Generator is the slice of the LLM client this package needs.
type Generator interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
}

type MergeMode string

const (
	MergeModeLLM   MergeMode = "llm"
	MergeModeRules MergeMode = "rules"
)

type Deps struct {
	Log *logger.Logger
	LLM Generator
	// MergeMode selects the model merge (default) or the deterministic rules.
	MergeMode MergeMode
}

type Service struct {
	log  *logger.Logger
	llm  Generator
	mode MergeMode
}

func New(deps Deps) (*Service, error) {
	if deps.Log == nil || deps.LLM == nil {
		return nil, fmt.Errorf("extraction: missing deps")
	}
	mode := deps.MergeMode
	switch mode {
	case "":
		mode = MergeModeLLM
	case MergeModeLLM, MergeModeRules:
	default:
		return nil, fmt.Errorf("%w: unknown merge mode %q", types.ErrConfiguration, mode)
	}
	return &Service{
		log:  deps.Log.With("service", "ExtractionService"),
		llm:  deps.LLM,
		mode: mode,
	}, nil
}

// Extraction is a schema-shaped document plus the enum values the model used
// that are not in the schema vocabulary.
type Extraction struct {
	Data                   map[string]any `json:"extractedData"`
	SuggestedNewEnumValues map[string]any `json:"suggestedNewEnumValues"`
}

// Extract asks the model for a document matching schema.
func (s *Service) Extract(ctx context.Context, text string, schema map[string]any) (out *Extraction, err error) {
	ctx, span := observability.StartSpan(ctx, "extraction.extract", attribute.Int("text_chars", len(text)))
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(text) == "" {
		return nil, &types.ValidationError{Field: "text", Reason: "required"}
	}
	prompt, err := extractUserPrompt(text, schema)
	if err != nil {
		return nil, &types.LLMExtractionFailedError{Reason: "encode schema", Cause: err}
	}
	reply, err := s.llm.GenerateText(ctx, extractSystemPrompt, prompt)
	if err != nil {
		return nil, &types.LLMExtractionFailedError{Reason: "generate", Cause: err}
	}

	var parsed Extraction
	if err := json.Unmarshal([]byte(stripCodeFences(reply)), &parsed); err != nil {
		return nil, &types.LLMExtractionFailedError{Reason: "unparseable reply", Cause: err}
	}
	if parsed.Data == nil {
		return nil, &types.LLMExtractionFailedError{Reason: "reply has no extractedData"}
	}
	if parsed.SuggestedNewEnumValues == nil {
		parsed.SuggestedNewEnumValues = map[string]any{}
	}
	if len(parsed.SuggestedNewEnumValues) > 0 {
		observability.ReportDataQuality(ctx, s.log, "extraction", observability.IssueUnmatchedEnum,
			sortedKeys(parsed.SuggestedNewEnumValues), map[string]any{"suggested": parsed.SuggestedNewEnumValues})
	}
	return &parsed, nil
}

// ExtractProfile extracts a profile document from text.
func (s *Service) ExtractProfile(ctx context.Context, text string) (profile.Document, error) {
	ext, err := s.Extract(ctx, text, ProfileSchema())
	if err != nil {
		return profile.Document{}, err
	}
	raw, err := json.Marshal(ext.Data)
	if err != nil {
		return profile.Document{}, &types.LLMExtractionFailedError{Reason: "encode extracted data", Cause: err}
	}
	doc, err := profile.ParseDocument(raw)
	if err != nil {
		return profile.Document{}, &types.LLMExtractionFailedError{Reason: "extracted data does not fit profile shape", Cause: err}
	}
	return doc, nil
}

// ExtractEventContext extracts event-scoped goals from text.
func (s *Service) ExtractEventContext(ctx context.Context, text string, eventID uuid.UUID) (events.ContextDocument, error) {
	ext, err := s.Extract(ctx, text, EventContextSchema())
	if err != nil {
		return events.ContextDocument{}, err
	}
	out := events.NewContextDocument(eventID)
	raw, err := json.Marshal(ext.Data)
	if err != nil {
		return out, &types.LLMExtractionFailedError{Reason: "encode extracted context", Cause: err}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return events.NewContextDocument(eventID), &types.LLMExtractionFailedError{Reason: "extracted context does not fit shape", Cause: err}
	}
	out.EventID = eventID.String()
	out.Goals.LookingFor = unionStrings(nil, out.Goals.LookingFor)
	out.Goals.Offering = unionStrings(nil, out.Goals.Offering)
	return out, nil
}

// MergeEventContext unions goal tags; tags are plain values so their natural
// key is the value itself.
func MergeEventContext(current, updates events.ContextDocument) events.ContextDocument {
	return events.ContextDocument{
		EventID: current.EventID,
		Goals: events.Goals{
			LookingFor: unionStrings(current.Goals.LookingFor, updates.Goals.LookingFor),
			Offering:   unionStrings(current.Goals.Offering, updates.Goals.Offering),
		},
	}
}

// Merge combines updates into current. The result is structurally checked and
// never loses a field populated in current.
func (s *Service) Merge(ctx context.Context, current, updates profile.Document) (out profile.Document, err error) {
	ctx, span := observability.StartSpan(ctx, "extraction.merge", attribute.String("mode", string(s.mode)))
	defer func() { observability.EndSpan(span, err) }()

	current.Normalize()
	if IsEmptyUpdate(updates) {
		return current, nil
	}
	if s.mode == MergeModeRules {
		return MergeDocuments(current, updates), nil
	}

	base := current.AsMap()
	prompt, err := mergeUserPrompt(base, updates.AsMap())
	if err != nil {
		return profile.Document{}, &types.LLMMergeFailedError{Reason: "encode documents", Cause: err}
	}
	reply, err := s.llm.GenerateText(ctx, mergeSystemPrompt, prompt)
	if err != nil {
		return profile.Document{}, &types.LLMMergeFailedError{Reason: "generate", Cause: err}
	}

	var merged map[string]any
	if err := json.Unmarshal([]byte(stripCodeFences(reply)), &merged); err != nil {
		return profile.Document{}, &types.LLMMergeFailedError{Reason: "unparseable reply", Cause: err}
	}
	if merged == nil {
		return profile.Document{}, &types.LLMMergeFailedError{Reason: "reply is not an object"}
	}
	if err := profile.CheckStructure(merged); err != nil {
		return profile.Document{}, &types.LLMMergeFailedError{Reason: "reply violates profile shape", Cause: err}
	}
	if dropped := unknownKeys(merged, base); len(dropped) > 0 {
		observability.ReportDataQuality(ctx, s.log, "merge", observability.IssueDroppedField, dropped, nil)
	}

	raw, err := json.Marshal(preservePopulated(base, merged))
	if err != nil {
		return profile.Document{}, &types.LLMMergeFailedError{Reason: "encode merged document", Cause: err}
	}
	doc, err := profile.ParseDocument(raw)
	if err != nil {
		var se *profile.StructureError
		if errors.As(err, &se) {
			return profile.Document{}, &types.LLMMergeFailedError{Reason: "merged document violates profile shape", Cause: err}
		}
		return profile.Document{}, &types.LLMMergeFailedError{Reason: "decode merged document", Cause: err}
	}
	return doc, nil
}

// GenerateMatchReason explains in one or two sentences why b is a good match
// for a. Callers fall back to a score-based reason on error.
func (s *Service) GenerateMatchReason(ctx context.Context, a, b profile.Condensed) (reason string, err error) {
	ctx, span := observability.StartSpan(ctx, "extraction.match_reason")
	defer func() { observability.EndSpan(span, err) }()

	prompt, err := matchReasonUserPrompt(a, b)
	if err != nil {
		return "", err
	}
	reply, err := s.llm.GenerateText(ctx, matchReasonSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	reason = strings.TrimSpace(stripCodeFences(reply))
	reason = strings.Trim(reason, "\"")
	if reason == "" {
		return "", fmt.Errorf("empty match reason")
	}
	return reason, nil
}

// unknownKeys lists top-level keys of merged that the document layout does not
// know; they are dropped on decode.
func unknownKeys(merged, known map[string]any) []string {
	var out []string
	for k := range merged {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
