package repo

import "time"

// fileTime converts a Unix-seconds timestamp to a time.Time suitable
// for os.Chtimes.
func fileTime(unixSeconds int64) time.Time {
	return time.Unix(unixSeconds, 0)
}
