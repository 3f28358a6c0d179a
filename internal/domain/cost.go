package domain

// SentinelErrorKey marks a synthetic CostSummary entry substituted when the
// billing backend is unavailable. Callers must not treat it as a real cost
// line.
const SentinelErrorKey = "Error"

// CostSummary maps a billing service name to its accumulated spend over the
// requested window. Constructed once per request and never mutated after.
type CostSummary map[string]float64

// Total returns the sum of all real cost lines, skipping the sentinel entry.
func (s CostSummary) Total() float64 {
	var total float64
	for service, amount := range s {
		if service == SentinelErrorKey {
			continue
		}
		total += amount
	}
	return total
}

// Unavailable reports whether the summary is the backend-failure sentinel.
func (s CostSummary) Unavailable() bool {
	_, ok := s[SentinelErrorKey]
	return ok
}
