package launcher

import (
	"regexp"
	"strconv"
	"time"
)

// RateLimitInfo describes a rate-limit condition detected in an agent's
// combined stdout/stderr.
type RateLimitInfo struct {
	// ResetAfter is the duration the agent itself reported until the limit
	// clears. Zero means no specific duration was found in the output.
	ResetAfter time.Duration
	// Message is the raw output the detection matched against, kept for
	// the invocation log and TUI status display.
	Message string
}

var (
	// reRateLimit matches common rate-limit phrases across backends.
	reRateLimit = regexp.MustCompile(`(?i)(?:rate limit|too many requests|rate.?limited)`)

	// reResetTime matches "reset in N seconds/minutes/hours" patterns.
	reResetTime = regexp.MustCompile(`(?i)reset\s+(?:in\s+)?(\d+)\s*(seconds?|minutes?|hours?)`)

	// reTryAgain matches "try again in N seconds/minutes/hours" patterns.
	reTryAgain = regexp.MustCompile(`(?i)try\s+again\s+in\s+(\d+)\s*(seconds?|minutes?|hours?)`)
)

// ParseRateLimit examines an agent's combined output for a rate-limit
// signal. It returns a populated *RateLimitInfo and true when one is found,
// nil and false otherwise.
func ParseRateLimit(output string) (*RateLimitInfo, bool) {
	if !reRateLimit.MatchString(output) {
		return nil, false
	}

	var resetAfter time.Duration
	if m := reResetTime.FindStringSubmatch(output); len(m) == 3 {
		resetAfter = parseResetDuration(m[1], m[2])
	} else if m := reTryAgain.FindStringSubmatch(output); len(m) == 3 {
		resetAfter = parseResetDuration(m[1], m[2])
	}

	return &RateLimitInfo{ResetAfter: resetAfter, Message: output}, true
}

// parseResetDuration converts a numeric string and a time unit word into a
// time.Duration. Returns 0 if amount does not parse.
func parseResetDuration(amount, unit string) time.Duration {
	n, err := strconv.Atoi(amount)
	if err != nil {
		return 0
	}
	switch {
	case len(unit) > 0 && unit[0] == 'h':
		return time.Duration(n) * time.Hour
	case len(unit) > 0 && unit[0] == 'm':
		return time.Duration(n) * time.Minute
	default:
		return time.Duration(n) * time.Second
	}
}
