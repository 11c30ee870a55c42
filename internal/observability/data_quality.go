package observability

import (
	"context"
	"strings"

	"github.com/yungbote/intromatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// Data-quality issue kinds.
const (
	IssueUnknownCheckKind = "unknown_check_kind"
	IssueUnmatchedEnum    = "unmatched_enum_value"
	IssueDroppedField     = "dropped_field"
)

// ReportDataQuality logs a data-quality signal and counts it. It never fails.
func ReportDataQuality(ctx context.Context, log *logger.Logger, stage, issue string, keys []string, meta map[string]any) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if td := ctxutil.GetTraceData(ctxutil.Default(ctx)); td != nil {
		if td.TraceID != "" {
			meta["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			meta["request_id"] = td.RequestID
		}
	}
	clean := make([]string, 0, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			clean = append(clean, key)
			Current().incDataQuality(stage, issue, key)
		}
	}
	if len(clean) == 0 {
		Current().incDataQuality(stage, issue, "")
	}
	if log != nil {
		log.Warn("data quality issue detected",
			"signal", "data_quality",
			"stage", stage,
			"issue", issue,
			"keys", clean,
			"meta", meta,
		)
	}
}
