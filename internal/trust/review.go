package trust

import (
	"context"
	"fmt"
	"log"

	"github.com/civiclens/signalgraph/internal/graph"
	"github.com/civiclens/signalgraph/internal/runcache"
	"github.com/civiclens/signalgraph/internal/signal"
)

// Audit reason tags recorded with each severity correction.
const (
	ReasonTrustedGrounded   = "trusted_grounded_floor"
	ReasonTrustedSource     = "trusted_source_floor"
	ReasonUntrustedDemotion = "untrusted_ungrounded_demotion"
	ReasonSourceDiversity   = "source_diversity_floor"
	ReasonCorroboration     = "corroboration_floor"
)

// ReviewStore is the storage surface the batch pass needs: one bulk read
// and one per-correction write.
type ReviewStore interface {
	SeverityReviewRows(ctx context.Context) ([]graph.ReviewRow, error)
	ApplySeverityCorrection(ctx context.Context, nodeID string, oldValue, newValue signal.Severity, reason string) error
}

// Report summarizes one severity review pass.
type Report struct {
	Reviewed  int `json:"reviewed"`
	Corrected int `json:"corrected"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

// ReviewSeverities recomputes severity for every stored node and writes
// back only the rows that changed, each with a field correction record.
// The cancel flag is checked between rows so a long pass can be stopped
// at a row boundary; already-applied corrections stand.
func ReviewSeverities(ctx context.Context, store ReviewStore, cancel *runcache.CancelFlag) (Report, error) {
	var report Report

	rows, err := store.SeverityReviewRows(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load severity review rows: %w", err)
	}

	for _, row := range rows {
		if cancel != nil && cancel.Cancelled() {
			return report, fmt.Errorf("severity review cancelled after %d of %d rows", report.Reviewed, len(rows))
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Reviewed++

		in := Inputs{
			Extracted:     row.Severity,
			Trusted:       IsTrusted(row.Metrics),
			Grounded:      row.CorroborationCount >= 1,
			Corroboration: row.CorroborationCount,
			Diversity:     row.SourceCount - 1,
		}
		computed := Infer(in)
		if computed == row.Severity.Normalize() {
			report.Unchanged++
			continue
		}

		reason := correctionReason(in, computed)
		if err := store.ApplySeverityCorrection(ctx, row.NodeID, row.Severity, computed, reason); err != nil {
			// A single bad row does not abort the pass.
			log.Printf("Warning: failed to correct severity for node %s: %v", row.NodeID, err)
			report.Skipped++
			continue
		}
		report.Corrected++
	}
	return report, nil
}

// correctionReason names which rule produced the new value, mirroring the
// rule order in Infer.
func correctionReason(in Inputs, computed signal.Severity) string {
	switch {
	case in.Trusted && in.Grounded:
		return ReasonTrustedGrounded
	case in.Trusted:
		return ReasonTrustedSource
	case !in.Grounded:
		return ReasonUntrustedDemotion
	case in.Diversity >= 2:
		return ReasonSourceDiversity
	case in.Corroboration >= 2:
		return ReasonCorroboration
	default:
		return "severity_recomputed"
	}
}
