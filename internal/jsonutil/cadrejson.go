package jsonutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// reCadreFence matches a markdown code fence whose info string is the literal
// "cadre-json" tag. Unlike Extract/ExtractAll, this does not fall back to
// brace-matching: per the embedding contract, any other JSON present in the
// surrounding text is ignored, and only the first cadre-json fence counts.
var reCadreFence = regexp.MustCompile("(?s)```cadre-json[ \\t]*\n(.*?)\n```")

// ExtractCadreJSON locates the first fenced code block whose info string is
// "cadre-json" and returns its contents as raw JSON. Any other JSON elsewhere
// in text, including plain ```json fences, is ignored.
func ExtractCadreJSON(text string) (json.RawMessage, error) {
	cleaned, err := sanitize(text)
	if err != nil {
		return nil, err
	}
	loc := reCadreFence.FindStringSubmatchIndex(cleaned)
	if loc == nil {
		return nil, fmt.Errorf("jsonutil: no cadre-json block found in text")
	}
	inner := strings.TrimSpace(cleaned[loc[2]:loc[3]])
	if inner == "" || !json.Valid([]byte(inner)) {
		return nil, fmt.Errorf("jsonutil: cadre-json block does not contain valid JSON")
	}
	return json.RawMessage(inner), nil
}

// ExtractCadreJSONInto locates the first cadre-json block in text and
// unmarshals its contents into target.
func ExtractCadreJSONInto(text string, target interface{}) error {
	raw, err := ExtractCadreJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("jsonutil: unmarshal cadre-json failed: %w", err)
	}
	return nil
}
