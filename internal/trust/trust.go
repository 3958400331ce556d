// Package trust holds the deterministic source-trust predicate and the
// severity inference table, plus the batch pass that applies them to
// stored nodes. Everything here is pure except the batch pass's reads
// and write-backs; it runs outside the dispatch loop.
package trust

import (
	"github.com/civiclens/signalgraph/internal/signal"
)

// Trust predicate cutoffs. A source must clear all four to be trusted:
// enough scrape history, prior corroborated signals, an acceptable
// quality score, and a signal rate low enough to rule out spam feeds.
const (
	minScrapeCount         = 10
	minSignalsCorroborated = 3
	minQualityPenalty      = 0.7
	maxAvgSignalsPerScrape = 20
)

// IsTrusted classifies a source from its scrape history.
func IsTrusted(m signal.SourceMetrics) bool {
	return m.ScrapeCount >= minScrapeCount &&
		m.SignalsCorroborated >= minSignalsCorroborated &&
		m.QualityPenalty >= minQualityPenalty &&
		m.AvgSignalsPerScrape < maxAvgSignalsPerScrape
}

// Inputs are the per-node facts severity inference consumes.
type Inputs struct {
	Extracted     signal.Severity
	Trusted       bool
	Grounded      bool
	Corroboration int
	Diversity     int
}

// Infer computes the possibly-elevated severity. "At least X" means
// max(extracted, X) under Low < Medium < High < Critical.
func Infer(in Inputs) signal.Severity {
	extracted := in.Extracted.Normalize()
	switch {
	case in.Trusted && in.Grounded:
		return extracted.Max(signal.SeverityHigh)
	case in.Trusted:
		return extracted.Max(signal.SeverityMedium)
	case !in.Grounded:
		// Untrusted and ungrounded: forced to Low regardless of what
		// the extractor claimed.
		return signal.SeverityLow
	case in.Diversity >= 2:
		return extracted.Max(signal.SeverityHigh)
	case in.Corroboration >= 2:
		return extracted.Max(signal.SeverityMedium)
	default:
		return extracted
	}
}
