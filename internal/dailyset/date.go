package dailyset

import (
	"regexp"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

const MaxSeconds = 86400

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,12}$`)

// Today returns the UTC calendar date of now.
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}

// NormalizeDate returns date, or today's date when it is empty.
func NormalizeDate(date string, now time.Time) (string, error) {
	if date == "" {
		return Today(now), nil
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", ErrInvalidDate
	}
	return date, nil
}

// DateRange returns the dates from today-behind to today+ahead-1 inclusive.
func DateRange(now time.Time, behind, ahead int) []string {
	today := now.UTC()
	dates := make([]string, 0, behind+ahead)
	for i := 0; i < ahead; i++ {
		dates = append(dates, today.AddDate(0, 0, i).Format(DateLayout))
	}
	for i := 1; i <= behind; i++ {
		dates = append(dates, today.AddDate(0, 0, -i).Format(DateLayout))
	}
	return dates
}

// NormalizeUsername trims and validates a username.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !usernamePattern.MatchString(name) {
		return "", ErrInvalidUsername
	}
	return name, nil
}
