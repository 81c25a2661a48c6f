package music

// TimeRange selects the window used for a user's top items.
type TimeRange string

// Supported time ranges.
const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// TimeRanges lists the supported ranges, shortest first.
func TimeRanges() []TimeRange {
	return []TimeRange{ShortTerm, MediumTerm, LongTerm}
}

// ParseTimeRange returns the matching range or MediumTerm for anything else.
func ParseTimeRange(s string) TimeRange {
	switch TimeRange(s) {
	case ShortTerm, MediumTerm, LongTerm:
		return TimeRange(s)
	}
	return MediumTerm
}

// Label is the human readable window.
func (r TimeRange) Label() string {
	switch r {
	case ShortTerm:
		return "Last 4 weeks"
	case LongTerm:
		return "All time"
	default:
		return "Last 6 months"
	}
}
