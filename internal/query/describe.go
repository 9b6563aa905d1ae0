package query

import (
	"time"

	"cloud.google.com/go/civil"
)

// FormatDateRange renders a range as the shortest accurate phrase:
// "on 05 Mar 2024", "in March 2024", "from Jan to Mar 2024",
// "from Dec 2023 to Feb 2024", "from 05 Mar 2024", "until 05 Mar 2024".
// It returns "" when both bounds are nil.
func FormatDateRange(from, to *civil.Date) string {
	switch {
	case from != nil && to != nil:
		f, t := from.In(time.UTC), to.In(time.UTC)
		switch {
		case *from == *to:
			return "on " + f.Format("02 Jan 2006")
		case from.Year == to.Year && from.Month == to.Month:
			return "in " + f.Format("January 2006")
		case from.Year == to.Year:
			return "from " + f.Format("Jan") + " to " + t.Format("Jan 2006")
		default:
			return "from " + f.Format("Jan 2006") + " to " + t.Format("Jan 2006")
		}
	case from != nil:
		return "from " + from.In(time.UTC).Format("02 Jan 2006")
	case to != nil:
		return "until " + to.In(time.UTC).Format("02 Jan 2006")
	}
	return ""
}
