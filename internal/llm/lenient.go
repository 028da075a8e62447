package llm

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/orderproof/internal/common"
)

var reFence = regexp.MustCompile("(?s)^\\s*```[a-zA-Z0-9_-]*\\s*\n?(.*?)\\s*```\\s*$")

// StripCodeFences removes a surrounding markdown code fence, if any.
func StripCodeFences(s string) string {
	if m := reFence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}

// RecoverJSON pulls the outermost JSON object out of a model reply that may be
// fenced or wrapped in prose.
func RecoverJSON(text string) ([]byte, error) {
	s := StripCodeFences(text)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil, common.ParseError("MODEL_NO_JSON", "model reply has no JSON object", nil)
	}
	raw := []byte(s[start : end+1])
	if !json.Valid(raw) {
		return nil, common.ParseError("MODEL_BAD_JSON", "model reply is not valid JSON", nil)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, common.ParseError("MODEL_BAD_JSON", "model reply is not valid JSON", err)
	}
	return buf.Bytes(), nil
}
