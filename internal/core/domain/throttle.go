package domain

import "time"

// IsDue reports whether a repository last reconciled at last may be
// reconciled again at now.
func IsDue(last *time.Time, now time.Time, minInterval time.Duration) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= minInterval
}

// PagesNeeded returns ceil(total/size). The result is advisory: the count
// and the pages are read at different instants.
func PagesNeeded(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
