package httputil

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// DateLayout is the format of the from and to query parameters
const DateLayout = "2006-01-02"

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryDate parses a YYYY-MM-DD query parameter as midnight in loc.
// A missing parameter returns nil.
func ParseQueryDate(r *http.Request, key string, loc *time.Location) (*time.Time, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, str, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date for query param %s: %s (want %s)", key, str, DateLayout)
	}
	return &t, nil
}

// ParseDateRange reads the inclusive from and to dates. to is extended to
// the last microsecond of its day. Either bound may be absent.
func ParseDateRange(r *http.Request, loc *time.Location) (from, to *time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	if from, err = ParseQueryDate(r, "from", loc); err != nil {
		return nil, nil, err
	}
	if to, err = ParseQueryDate(r, "to", loc); err != nil {
		return nil, nil, err
	}
	if to != nil {
		end := to.AddDate(0, 0, 1).Add(-time.Microsecond)
		to = &end
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, fmt.Errorf("from must not be after to")
	}
	return from, to, nil
}
