package series

import (
	"fmt"
	"time"
)

// Point is a single dated return observation.
type Point struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// ReturnSeries is an ordered sequence of dated returns. It is built once by
// the backtest collaborator and treated as read-only by every validator.
type ReturnSeries struct {
	points []Point
}

// New constructs a ReturnSeries and enforces strictly increasing dates.
// Gaps between dates are tolerated; duplicates and out-of-order points are not.
func New(points []Point) (*ReturnSeries, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("return series requires at least one point")
	}

	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			return nil, fmt.Errorf("return series dates must be strictly increasing: %s followed by %s",
				points[i-1].Date.Format("2006-01-02"), points[i].Date.Format("2006-01-02"))
		}
	}

	owned := make([]Point, len(points))
	copy(owned, points)

	return &ReturnSeries{points: owned}, nil
}

// Len returns the number of observations.
func (s *ReturnSeries) Len() int {
	return len(s.points)
}

// At returns the observation at index i.
func (s *ReturnSeries) At(i int) Point {
	return s.points[i]
}

// Returns extracts the raw return values in date order.
func (s *ReturnSeries) Returns() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Return
	}
	return out
}

// Bounds returns the period spanned by the series, end-exclusive by one day
// so that Slice(Bounds()) round-trips the full series.
func (s *ReturnSeries) Bounds() PeriodBounds {
	return PeriodBounds{
		Start: s.points[0].Date,
		End:   s.points[len(s.points)-1].Date.AddDate(0, 0, 1),
	}
}

// Slice returns the sub-series with dates in [b.Start, b.End). The result
// shares no storage with the receiver.
func (s *ReturnSeries) Slice(b PeriodBounds) *ReturnSeries {
	var sub []Point
	for _, p := range s.points {
		if p.Date.Before(b.Start) {
			continue
		}
		if !p.Date.Before(b.End) {
			break
		}
		sub = append(sub, p)
	}
	return &ReturnSeries{points: sub}
}

// DateAt returns the date of the observation at index i.
func (s *ReturnSeries) DateAt(i int) time.Time {
	return s.points[i].Date
}

// PeriodBounds is a contiguous date sub-range, start-inclusive and
// end-exclusive. Partitions of one split never overlap.
type PeriodBounds struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks the start < end invariant.
func (b PeriodBounds) Validate() error {
	if !b.Start.Before(b.End) {
		return fmt.Errorf("period start %s must precede end %s",
			b.Start.Format("2006-01-02"), b.End.Format("2006-01-02"))
	}
	return nil
}

// Overlaps reports whether two bounds share any instant.
func (b PeriodBounds) Overlaps(o PeriodBounds) bool {
	return b.Start.Before(o.End) && o.Start.Before(b.End)
}

// String renders the bounds for log output.
func (b PeriodBounds) String() string {
	return fmt.Sprintf("%s..%s", b.Start.Format("2006-01-02"), b.End.Format("2006-01-02"))
}
