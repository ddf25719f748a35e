package domain

// ResolveStatus describes how a temporal rate lookup concluded. The status,
// not the raw value, drives downstream confidence grading: a null value alone
// cannot distinguish "confirmed zero" from "unknown".
type ResolveStatus string

const (
	// ResolveOK means a priority tier matched a record valid at the query date.
	ResolveOK ResolveStatus = "OK"
	// ResolveNoMatch means the scope has some coverage but none valid at the query date.
	ResolveNoMatch ResolveStatus = "NO_MATCH"
	// ResolveNoDataset means the scope has no coverage at all.
	ResolveNoDataset ResolveStatus = "NO_DATASET"
	// ResolveOutOfScope means the destination is explicitly excluded from this kind of resolution.
	ResolveOutOfScope ResolveStatus = "OUT_OF_SCOPE"
	// ResolveError means the lookup itself failed.
	ResolveError ResolveStatus = "ERROR"
)

// PriorityTier is one step of the override precedence walk.
type PriorityTier string

const (
	// TierOverrideExplicit: an override record carrying an explicit rate for the product code.
	TierOverrideExplicit PriorityTier = "OVERRIDE_EXPLICIT"
	// TierOverrideNamed: an override record pointing at a named rate-kind (schedule reference).
	TierOverrideNamed PriorityTier = "OVERRIDE_NAMED"
	// TierOfficial: an official published rate.
	TierOfficial PriorityTier = "OFFICIAL"
	// TierCountryDefault: the country-level default.
	TierCountryDefault PriorityTier = "COUNTRY_DEFAULT"
)

// DefaultPriority is the precedence used by the quote orchestrator.
var DefaultPriority = []PriorityTier{
	TierOverrideExplicit,
	TierOverrideNamed,
	TierOfficial,
	TierCountryDefault,
}

// ResolveMeta accompanies every resolved value.
type ResolveMeta struct {
	Status  ResolveStatus `json:"status"`
	Tier    PriorityTier  `json:"tier,omitempty"`
	Dataset string        `json:"dataset,omitempty"`
}

// ResolvedRate is the outcome of a temporal rate lookup. Record is nil unless
// Meta.Status is ResolveOK.
type ResolvedRate struct {
	Record *RateRecord `json:"record,omitempty"`
	Meta   ResolveMeta `json:"meta"`
}

// Confidence grades one quote component (or the quote as a whole).
type Confidence string

const (
	ConfidenceAuthoritative Confidence = "AUTHORITATIVE"
	ConfidenceEstimated     Confidence = "ESTIMATED"
	ConfidenceMissing       Confidence = "MISSING"
)

// ConfidenceForStatus maps a resolver status to a confidence grade,
// deterministically for all inputs.
func ConfidenceForStatus(status ResolveStatus) Confidence {
	switch status {
	case ResolveOK:
		return ConfidenceAuthoritative
	case ResolveNoDataset, ResolveError:
		return ConfidenceMissing
	default:
		// NO_MATCH and OUT_OF_SCOPE: there is signal, but not an applicable record.
		return ConfidenceEstimated
	}
}

// WorseConfidence returns the lower of two confidence grades.
func WorseConfidence(a, b Confidence) Confidence {
	rank := map[Confidence]int{
		ConfidenceAuthoritative: 2,
		ConfidenceEstimated:     1,
		ConfidenceMissing:       0,
	}
	if rank[b] < rank[a] {
		return b
	}
	return a
}
