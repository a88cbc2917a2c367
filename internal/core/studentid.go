package core

import (
	"fmt"
	"strconv"
	"strings"
)

// NextStudentID returns prefix followed by one more than the largest numeric
// suffix found among existing ids that carry the same prefix, zero-padded to
// padWidth. With no such ids the sequence starts at 1 (e.g. STU001).
// Ids with a non-numeric suffix, time-based fallback ids included, are
// ignored.
func NextStudentID(prefix string, padWidth int, existing []string) string {
	highest := 0
	for _, id := range existing {
		suffix, ok := strings.CutPrefix(strings.TrimSpace(id), prefix)
		if !ok || suffix == "" {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 0 {
			continue
		}
		highest = max(highest, n)
	}
	return formatStudentID(prefix, padWidth, highest+1)
}

func formatStudentID(prefix string, padWidth int, n int) string {
	if padWidth > 0 {
		return fmt.Sprintf("%s%0*d", prefix, padWidth, n)
	}
	return fmt.Sprintf("%s%d", prefix, n)
}

// fallbackTag marks time-based ids. The tag makes the suffix non-numeric so
// NextStudentID never continues the sequence from a timestamp.
const fallbackTag = "-T"

// fallbackStudentID builds a time-based id used when existing ids cannot be
// listed, e.g. STU-T1773480600000.
func fallbackStudentID(prefix string, unixMilli int64) string {
	return prefix + fallbackTag + strconv.FormatInt(unixMilli, 10)
}
