package validation

import (
	"sort"
)

// Summary holds the statistics of a result set.
type Summary struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Errored int `json:"error"`

	ValidPercent   float64 `json:"valid_percent"`
	InvalidPercent float64 `json:"invalid_percent"`
	ErrorPercent   float64 `json:"error_percent"`

	// Codes counts Invalid reasons and Errored kinds.
	Codes map[string]int `json:"error_codes"`
}

// ResultSet is the aggregated output of a run. Each slice is in input order.
type ResultSet struct {
	Valid   []Outcome `json:"valid"`
	Invalid []Outcome `json:"invalid"`
	Errored []Outcome `json:"errored"`
	Summary Summary   `json:"summary"`

	// ordered holds every outcome in input order when known.
	ordered []Outcome
}

// Aggregate partitions outcomes by kind, ordering each partition by the
// record index regardless of the order outcomes completed in. Use Partition
// when the outcomes are already in input order.
func Aggregate(outcomes []Outcome) ResultSet {
	ordered := make([]Outcome, len(outcomes))
	copy(ordered, outcomes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Record.Index < ordered[j].Record.Index
	})
	return partition(ordered)
}

// Partition splits outcomes that are already in input order by kind. Record
// indexes are not consulted.
func Partition(outcomes []Outcome) ResultSet {
	ordered := make([]Outcome, len(outcomes))
	copy(ordered, outcomes)
	return partition(ordered)
}

func partition(ordered []Outcome) ResultSet {
	rs := ResultSet{
		Valid:   []Outcome{},
		Invalid: []Outcome{},
		Errored: []Outcome{},
		ordered: ordered,
	}
	codes := make(map[string]int)

	for _, o := range ordered {
		switch o.Kind {
		case KindValid:
			rs.Valid = append(rs.Valid, o)
		case KindInvalid:
			rs.Invalid = append(rs.Invalid, o)
			codes[o.Code()]++
		default:
			rs.Errored = append(rs.Errored, o)
			codes[o.Code()]++
		}
	}

	rs.Summary = Summary{
		Total:   len(ordered),
		Valid:   len(rs.Valid),
		Invalid: len(rs.Invalid),
		Errored: len(rs.Errored),
		Codes:   codes,
	}
	if total := float64(rs.Summary.Total); total > 0 {
		rs.Summary.ValidPercent = float64(rs.Summary.Valid) / total * 100
		rs.Summary.InvalidPercent = float64(rs.Summary.Invalid) / total * 100
		rs.Summary.ErrorPercent = float64(rs.Summary.Errored) / total * 100
	}

	return rs
}

// All returns every outcome merged back into input order.
func (rs ResultSet) All() []Outcome {
	if rs.ordered != nil && len(rs.ordered) == rs.Len() {
		all := make([]Outcome, len(rs.ordered))
		copy(all, rs.ordered)
		return all
	}

	all := make([]Outcome, 0, rs.Summary.Total)
	all = append(all, rs.Valid...)
	all = append(all, rs.Invalid...)
	all = append(all, rs.Errored...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Record.Index < all[j].Record.Index
	})
	return all
}

// Len returns the number of outcomes across all kinds.
func (rs ResultSet) Len() int {
	return len(rs.Valid) + len(rs.Invalid) + len(rs.Errored)
}
