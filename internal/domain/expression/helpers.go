package expression

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	helperCalculateAge   = "calculateAgeFromDOB"
	helperIsEmpty        = "isEmpty"
	helperMatchesPattern = "matchesPattern"
	helperIsValidDate    = "isValidDate"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102",
}

type helper struct {
	minArgs int
	maxArgs int
	fn      func(args ...interface{}) (interface{}, error)
}

func (h helper) arity() string {
	if h.minArgs == h.maxArgs {
		return fmt.Sprintf("%d argument(s)", h.minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", h.minArgs, h.maxArgs)
}

// HelperNames lists the functions callable from expressions
func HelperNames() []string {
	return []string{helperCalculateAge, helperIsEmpty, helperMatchesPattern, helperIsValidDate}
}

func newHelpers(now func() time.Time, patterns *cache.Cache) map[string]helper {
	return map[string]helper{
		helperCalculateAge: {
			minArgs: 1,
			maxArgs: 2,
			fn: func(args ...interface{}) (interface{}, error) {
				var ref interface{}
				if len(args) > 1 {
					ref = args[1]
				}
				return calculateAgeFromDOB(args[0], ref, now()), nil
			},
		},
		helperIsEmpty: {
			minArgs: 1,
			maxArgs: 1,
			fn: func(args ...interface{}) (interface{}, error) {
				return isEmpty(args[0]), nil
			},
		},
		helperMatchesPattern: {
			minArgs: 2,
			maxArgs: 2,
			fn: func(args ...interface{}) (interface{}, error) {
				return matchesPattern(patterns, args[0], args[1])
			},
		},
		helperIsValidDate: {
			minArgs: 1,
			maxArgs: 1,
			fn: func(args ...interface{}) (interface{}, error) {
				_, ok := parseDate(args[0])
				return ok, nil
			},
		},
	}
}

// parseDate accepts the date layouts used in case documents
func parseDate(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// calculateAgeFromDOB returns completed years between dob and ref, or nil when a date is unusable.
// A missing ref means now.
func calculateAgeFromDOB(dob, ref interface{}, now time.Time) interface{} {
	birth, ok := parseDate(dob)
	if !ok {
		return nil
	}

	at := now
	if ref != nil && ref != "" {
		if at, ok = parseDate(ref); !ok {
			return nil
		}
	}

	years := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	return float64(years)
}

func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []interface{}:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	}
	return false
}

func matchesPattern(patterns *cache.Cache, value, pattern interface{}) (bool, error) {
	p, ok := pattern.(string)
	if !ok {
		return false, fmt.Errorf("pattern must be a string, got %T", pattern)
	}

	key := "pattern:" + p
	var re *regexp.Regexp
	if cached, found := patterns.Get(key); found {
		re = cached.(*regexp.Regexp)
	} else {
		compiled, err := regexp.Compile(p)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		re = compiled
		patterns.Set(key, re, cache.DefaultExpiration)
	}

	if value == nil {
		return false, nil
	}
	return re.MatchString(toText(value)), nil
}
