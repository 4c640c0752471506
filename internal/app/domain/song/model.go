package song

// MinBaseValue is the smallest baseline value accepted at creation. Below
// this the per-listen increment (baseValue/100) truncates to zero and the
// valuation curve never moves.
const MinBaseValue = 100

// MinLengthSeconds is the shortest accepted track length, exclusive.
const MinLengthSeconds = 60

// Song is a catalog entry. Name, Text, LengthSeconds and BaseValue are
// immutable after creation; the counters move through catalog operations
// only.
type Song struct {
	Name          string `json:"name"`
	Text          string `json:"text"`
	LengthSeconds int64  `json:"length_seconds"`
	// RatingSum starts at 5 with RatingCount 1 so an unrated song reports
	// a defined average of 5.
	RatingSum     int64 `json:"rating_sum"`
	RatingCount   int64 `json:"rating_count"`
	TimesListened int64 `json:"times_listened"`
	// BaseValue is denominated in ledger smallest units.
	BaseValue int64 `json:"base_value"`
	Active    bool  `json:"active"`
}

// AverageRating returns the floored average rating. RatingCount is seeded
// at 1, so the division is always defined.
func (s Song) AverageRating() int64 {
	return s.RatingSum / s.RatingCount
}
