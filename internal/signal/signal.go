package signal

import "strings"

// NodeType is the closed set of signal kinds the extractor produces.
// Cross-type dedup matches are structurally impossible, so every lookup
// is scoped to a single NodeType.
type NodeType string

const (
	NodeEvent  NodeType = "event"
	NodeAsk    NodeType = "ask"
	NodeOffer  NodeType = "offer"
	NodeNotice NodeType = "notice"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeEvent, NodeAsk, NodeOffer, NodeNotice:
		return true
	}
	return false
}

// PendingNode is an extracted-but-not-yet-committed signal. It is created by
// extraction, consumed exactly once by the dedup resolver, and then either
// promoted into a durable node or discarded in favor of an existing one.
type PendingNode struct {
	NodeType  NodeType  `json:"nodeType"`
	Title     string    `json:"title"`
	SourceURL string    `json:"sourceUrl"`
	Summary   string    `json:"summary,omitempty"`
	Severity  Severity  `json:"severity,omitempty"`
	Raw       string    `json:"raw,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Node is a committed durable signal as read back from the graph store.
type Node struct {
	ID                 string   `json:"id"`
	NodeType           NodeType `json:"nodeType"`
	Title              string   `json:"title"`
	SourceURL          string   `json:"sourceUrl"`
	Summary            string   `json:"summary,omitempty"`
	Severity           Severity `json:"severity"`
	CorroborationCount int      `json:"corroborationCount"`
	SourceCount        int      `json:"sourceCount"`
}

// SourceMetrics are the per-source trust inputs consumed by the trust
// predicate. They are owned by ingest bookkeeping and read-only here.
type SourceMetrics struct {
	URL                 string  `json:"url"`
	ScrapeCount         int     `json:"scrapeCount"`
	SignalsCorroborated int     `json:"signalsCorroborated"`
	QualityPenalty      float64 `json:"qualityPenalty"`
	AvgSignalsPerScrape float64 `json:"avgSignalsPerScrape"`
}

// FieldCorrection is the audit record written whenever a batch pass changes
// a stored field value.
type FieldCorrection struct {
	NodeID   string `json:"nodeId"`
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
	Reason   string `json:"reason"`
}

// Severity is the ordered severity scale Low < Medium < High < Critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the position of s in the severity order. Unknown values
// rank as Low so stale stored strings never outrank a computed floor.
func (s Severity) Rank() int {
	if r, ok := severityRank[Severity(strings.ToLower(string(s)))]; ok {
		return r
	}
	return 0
}

// Max returns the higher of s and other under the severity order.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s.Normalize()
}

// Normalize maps arbitrary stored strings onto the canonical scale.
func (s Severity) Normalize() Severity {
	switch Severity(strings.ToLower(string(s))) {
	case SeverityMedium:
		return SeverityMedium
	case SeverityHigh:
		return SeverityHigh
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityLow
	}
}
