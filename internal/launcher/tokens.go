package launcher

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// tokenUsageJSON mirrors the subset of an agent's JSON-mode stdout this
// parser cares about.
type tokenUsageJSON struct {
	Usage struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	} `json:"usage"`
}

// reTokenPatterns are tried, in order, against stdout then stderr when JSON
// parsing fails.
var reTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total_tokens:\s*([\d,]+)`),
	regexp.MustCompile(`(?i)Total tokens:\s*([\d,]+)`),
	regexp.MustCompile(`(?i)tokens used:\s*([\d,]+)`),
	regexp.MustCompile(`(?i)usage:\s*([\d,]+)\s*tokens`),
}

// parseTokenUsage extracts the total token count from an agent invocation's
// stdout/stderr. It tries JSON mode first, then falls back to regex patterns
// over stdout and then stderr. Returns 0 when nothing matches.
func parseTokenUsage(stdout, stderr string) int {
	var parsed tokenUsageJSON
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &parsed); err == nil {
		total := parsed.Usage.InputTokens + parsed.Usage.OutputTokens +
			parsed.Usage.CacheReadInputTokens + parsed.Usage.CacheCreationInputTokens
		if total > 0 {
			return total
		}
	}

	if n, ok := matchTokenRegex(stdout); ok {
		return n
	}
	if n, ok := matchTokenRegex(stderr); ok {
		return n
	}
	return 0
}

func matchTokenRegex(text string) (int, bool) {
	for _, re := range reTokenPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cleaned := strings.ReplaceAll(m[1], ",", "")
		n, err := strconv.Atoi(cleaned)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}
