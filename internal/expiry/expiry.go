// Package expiry maps share-token duration categories to lifetimes and absolute expiry times.
// The same functions are used on the write path (token creation) and the read path
// (listing and preview checks) so expiry semantics cannot diverge.
package expiry

import (
	"errors"
	"fmt"
	"time"
)

// Duration is a share-token lifetime category
type Duration string

// Supported duration categories
const (
	OneDay   Duration = "1d"
	OneWeek  Duration = "1w"
	OneMonth Duration = "1m"
)

// Lifetimes in seconds for each category. A month is a fixed 30 days.
const (
	oneDaySeconds   = 86400
	oneWeekSeconds  = 604800
	oneMonthSeconds = 2592000
)

// ErrUnknownDuration is returned for durations outside the fixed set
var ErrUnknownDuration = errors.New("unknown duration")

// Durations lists every accepted category in ascending order
func Durations() []Duration {
	return []Duration{OneDay, OneWeek, OneMonth}
}

// Valid reports whether d is one of the fixed categories
func (d Duration) Valid() bool {
	_, err := Seconds(d)
	return err == nil
}

func (d Duration) String() string {
	return string(d)
}

// Seconds returns the lifetime of d in seconds
func Seconds(d Duration) (int64, error) {
	switch d {
	case OneDay:
		return oneDaySeconds, nil
	case OneWeek:
		return oneWeekSeconds, nil
	case OneMonth:
		return oneMonthSeconds, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDuration, string(d))
	}
}

// Compute returns createdAt shifted by the lifetime of d
func Compute(createdAt time.Time, d Duration) (time.Time, error) {
	secs, err := Seconds(d)
	if err != nil {
		return time.Time{}, err
	}
	return createdAt.Add(time.Duration(secs) * time.Second), nil
}

// IsExpired reports whether expiresAt has been reached at now
func IsExpired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}
