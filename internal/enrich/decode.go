package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/galois26/event-ingester/internal/model"
)

// Decode parses a model reply into classifications.
//
// Only a reply that is not a JSON array at all is an error. Elements are
// decoded one by one: a malformed element yields a zero Classification, and a
// type outside the known set is left empty.
func Decode(text string) ([]model.Classification, error) {
	cleaned := StripFences(text)
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, fmt.Errorf("decode classifications: %w (raw: %s)", err, head(text, 200))
	}
	if items == nil {
		return nil, errors.New("decode classifications: reply is not an array")
	}
	out := make([]model.Classification, len(items))
	for i, raw := range items {
		out[i] = decodeItem(raw)
	}
	return out, nil
}

func decodeItem(raw json.RawMessage) model.Classification {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return model.Classification{}
	}
	c := model.Classification{
		Name:    stringField(obj, "name"),
		Artists: stringField(obj, "artists"),
	}
	if t := model.EventType(strings.ToLower(stringField(obj, "type"))); t.Valid() {
		c.Type = t
	}
	return c
}

func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "[{") {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
