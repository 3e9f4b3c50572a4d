package unwind

// TimingStats accumulates unwinding time over every sample, kept or not.
type TimingStats struct {
	TotalNs int64 `json:"total_ns"`
	Count   int64 `json:"count"`
	MaxNs   int64 `json:"max_ns"`
}

func (s *TimingStats) AddTime(usedNs int64) {
	s.TotalNs += usedNs
	s.Count++
	if usedNs > s.MaxNs {
		s.MaxNs = usedNs
	}
}

// AvgNs returns the mean unwinding time, zero when no samples were seen.
func (s *TimingStats) AvgNs() float64 {
	if s.Count == 0 {
		return 0
	}

	return float64(s.TotalNs) / float64(s.Count)
}
