package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Priority ranks a recommendation for synthesis ordering.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns the sort bucket for a priority; lower sorts first.
// Unknown priorities sort after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// ParsePriority normalizes a loosely-typed priority value. Anything
// unrecognized falls back to medium rather than failing the record.
func ParsePriority(v interface{}) Priority {
	s, _ := v.(string)
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityCritical:
		return PriorityCritical
	case PriorityHigh:
		return PriorityHigh
	case PriorityMedium:
		return PriorityMedium
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Recommendation is the semantic container produced by agents. Required
// fields are typed; everything else an agent attaches rides along in Extra
// untouched and survives JSON round-trips inline with the typed fields.
type Recommendation struct {
	Title       string
	Category    string
	Priority    Priority
	Confidence  float64
	SourceAgent string
	Extra       map[string]interface{}
}

// reserved keys handled by the typed fields above.
var reservedRecKeys = map[string]bool{
	"title":        true,
	"category":     true,
	"type":         true,
	"priority":     true,
	"confidence":   true,
	"source_agent": true,
}

// NormalizedTitle is the deduplication key used by synthesis: lower-cased,
// whitespace-trimmed title.
func (r Recommendation) NormalizedTitle() string {
	return strings.ToLower(strings.TrimSpace(r.Title))
}

// Get looks up a field by key, covering both typed fields and the extension
// bag, so callers never branch on shape.
func (r Recommendation) Get(key string) (interface{}, bool) {
	switch key {
	case "title":
		return r.Title, true
	case "category", "type":
		return r.Category, true
	case "priority":
		return string(r.Priority), true
	case "confidence":
		return r.Confidence, true
	case "source_agent":
		return r.SourceAgent, true
	}
	v, ok := r.Extra[key]
	return v, ok
}

// RecommendationFromMap builds a typed record from a loosely-typed mapping,
// accepting either "category" or "type" for the category field and keeping
// all unrecognized keys in Extra.
func RecommendationFromMap(m map[string]interface{}) Recommendation {
	rec := Recommendation{Priority: ParsePriority(m["priority"])}
	if s, ok := m["title"].(string); ok {
		rec.Title = s
	}
	if s, ok := m["category"].(string); ok {
		rec.Category = s
	} else if s, ok := m["type"].(string); ok {
		rec.Category = s
	}
	rec.Confidence = coerceFloat(m["confidence"])
	if s, ok := m["source_agent"].(string); ok {
		rec.SourceAgent = s
	}
	for k, v := range m {
		if reservedRecKeys[k] {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]interface{})
		}
		rec.Extra[k] = v
	}
	return rec
}

// ToMap flattens the record back into a single mapping with Extra inlined.
func (r Recommendation) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, 5+len(r.Extra))
	for k, v := range r.Extra {
		m[k] = v
	}
	m["title"] = r.Title
	m["category"] = r.Category
	m["priority"] = string(r.Priority)
	m["confidence"] = r.Confidence
	if r.SourceAgent != "" {
		m["source_agent"] = r.SourceAgent
	}
	return m
}

// MarshalJSON inlines Extra alongside the typed fields.
func (r Recommendation) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

// UnmarshalJSON accepts any recommendation-shaped object.
func (r *Recommendation) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = RecommendationFromMap(m)
	return nil
}

// coerceFloat accepts the numeric shapes JSON decoding produces; out-of-range
// confidences clamp to [0,1].
func coerceFloat(v interface{}) float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		f, _ = val.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(val), 64)
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
