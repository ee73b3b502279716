// Package schema owns one validator per analysis task type. Validators accept
// arbitrary parsed JSON and return either a normalized, canonically re-marshalled
// value or a ValidationError describing what the model got wrong. Failures are
// values, never panics, so callers can feed the reason back into a retry prompt.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"tubeinsights/internal/types"
)

// ValidationError describes why an LLM payload failed its task schema.
type ValidationError struct {
	Task   types.TaskType
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Task, e.Reason)
}

// Normalized is a payload that passed validation: canonical JSON plus optional
// derived display markdown.
type Normalized struct {
	JSON     json.RawMessage
	Markdown string
}

type validator func(raw json.RawMessage) (*Normalized, *ValidationError)

var registry = map[types.TaskType]validator{
	types.TaskStructuralBeats: validateStructuralBeats,
	types.TaskEmotionalArc:    validateEmotionalArc,
	types.TaskMonetization:    validateMonetization,
	types.TaskTitlePattern:    validateTitlePattern,
	types.TaskVisualAssets:    validateVisualAssets,
	types.TaskHighlights:      validateHighlights,
	types.TaskNarrative:       validateNarrative,
	types.TaskOverview:        validateOverview,
}

// Validate checks raw against the schema for the given task type. The returned
// error, when non-nil, is always a *ValidationError.
func Validate(task types.TaskType, raw json.RawMessage) (*Normalized, error) {
	v, ok := registry[task]
	if !ok {
		return nil, &ValidationError{Task: task, Reason: "unknown task type"}
	}
	norm, verr := v(raw)
	if verr != nil {
		verr.Task = task
		return nil, verr
	}
	return norm, nil
}

func fail(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func decodeStrict(raw json.RawMessage, target interface{}) *ValidationError {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if err := dec.Decode(target); err != nil {
		return fail("payload is not the expected object shape: %v", err)
	}
	return nil
}

func canonical(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// --- structural_beats -------------------------------------------------------

// beatCount is fixed: the structural analysis always describes six beats.
const beatCount = 6

type Beat struct {
	Position    int    `json:"position"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type StructuralBeats struct {
	Beats  []Beat `json:"beats"`
	Pacing string `json:"pacing,omitempty"`
}

func validateStructuralBeats(raw json.RawMessage) (*Normalized, *ValidationError) {
	var out StructuralBeats
	if verr := decodeStrict(raw, &out); verr != nil {
		return nil, verr
	}
	if len(out.Beats) != beatCount {
		return nil, fail("beats must contain exactly %d items, got %d", beatCount, len(out.Beats))
	}
	for i, b := range out.Beats {
		if b.Position < 1 || b.Position > beatCount {
			return nil, fail("beats[%d].position must be an integer in [1,%d]", i, beatCount)
		}
		if strings.TrimSpace(b.Label) == "" {
			return nil, fail("beats[%d].label must be a non-empty string", i)
		}
		if strings.TrimSpace(b.Description) == "" {
			return nil, fail("beats[%d].description must be a non-empty string", i)
		}
	}
	return &Normalized{JSON: canonical(out)}, nil
}

// --- emotional_arc ----------------------------------------------------------

type EmotionalPillar struct {
	Emotion string `json:"emotion"`
	Trigger string `json:"trigger"`
}

type EmotionalArc struct {
	Arc     string            `json:"arc"`
	Pillars []EmotionalPillar `json:"pillars"`
	Tone    string            `json:"tone,omitempty"`
}

func validateEmotionalArc(raw json.RawMessage) (*Normalized, *ValidationError) {
	var out EmotionalArc
	if verr := decodeStrict(raw, &out); verr != nil {
		return nil, verr
	}
	if strings.TrimSpace(out.Arc) == "" {
		return nil, fail("arc must be a non-empty string")
	}
	if len(out.Pillars) < 1 {
		return nil, fail("pillars must contain at least one item")
	}
	for i, p := range out.Pillars {
		if strings.TrimSpace(p.Emotion) == "" {
			return nil, fail("pillars[%d].emotion must be a non-empty string", i)
		}
	}
	return &Normalized{JSON: canonical(out)}, nil
}

// --- monetization -----------------------------------------------------------

type RevenueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Monetization struct {
	Category   string        `json:"category"`
	CPMUSD     float64       `json:"cpm_usd,omitempty"`
	Revenue    *RevenueRange `json:"revenue"`
	Strategies []string      `json:"strategies,omitempty"`
}

func validateMonetization(raw json.RawMessage) (*Normalized, *ValidationError) {
	var out Monetization
	if verr := decodeStrict(raw, &out); verr != nil {
		return nil, verr
	}
	if strings.TrimSpace(out.Category) == "" {
		return nil, fail("category must be a non-empty string")
	}
	if out.Revenue == nil {
		return nil, fail("revenue object with min/max is required")
	}
	if out.Revenue.Min < 0 {
		return nil, fail("revenue.min must be >= 0")
	}
	if out.Revenue.Max < out.Revenue.Min {
		return nil, fail("revenue.max must be >= revenue.min")
	}
	return &Normalized{JSON: canonical(out)}, nil
}

// --- title_pattern ----------------------------------------------------------

type TitlePattern struct {
	Score       int      `json:"score"`
	Pattern     string   `json:"pattern"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func validateTitlePattern(raw json.RawMessage) (*Normalized, *ValidationError) {
	// Decode score as float first so 100.5 is caught as a non-integer rather
	// than a decode error.
	var probe struct {
		Score       float64  `json:"score"`
		Pattern     string   `json:"pattern"`
		Suggestions []string `json:"suggestions"`
	}
	if verr := decodeStrict(raw, &probe); verr != nil {
		return nil, verr
	}
	if probe.Score != math.Trunc(probe.Score) {
		return nil, fail("score must be an integer, got %v", probe.Score)
	}
	score := int(probe.Score)
	if score < 0 || score > 100 {
		return nil, fail("score must be an integer in [0,100], got %d", score)
	}
	if strings.TrimSpace(probe.Pattern) == "" {
		return nil, fail("pattern must be a non-empty string")
	}
	out := TitlePattern{Score: score, Pattern: probe.Pattern, Suggestions: probe.Suggestions}
	return &Normalized{JSON: canonical(out)}, nil
}

// --- visual_assets ----------------------------------------------------------

type VisualAssets struct {
	Elements    []string `json:"elements"`
	ColorScheme string   `json:"color_scheme,omitempty"`
	Improvement string   `json:"improvement,omitempty"`
}

func validateVisualAssets(raw json.RawMessage) (*Normalized, *ValidationError) {
	var out VisualAssets
	if verr := decodeStrict(raw, &out); verr != nil {
		return nil, verr
	}
	if len(out.Elements) < 1 {
		return nil, fail("elements must contain at least one item")
	}
	for i, el := range out.Elements {
		if strings.TrimSpace(el) == "" {
			return nil, fail("elements[%d] must be a non-empty string", i)
		}
	}
	return &Normalized{JSON: canonical(out)}, nil
}

// --- highlights -------------------------------------------------------------

type Highlight struct {
	Timestamp string `json:"timestamp"`
	Title     string `json:"title"`
	Reason    string `json:"reason,omitempty"`
}

type Highlights struct {
	Highlights []Highlight `json:"highlights"`
}

func validateHighlights(raw json.RawMessage) (*Normalized, *ValidationError) {
	var out Highlights
	if verr := decodeStrict(raw, &out); verr != nil {
		return nil, verr
	}
	if len(out.Highlights) < 1 {
		return nil, fail("highlights must contain at least one item")
	}
	for i, h := range out.Highlights {
		if strings.TrimSpace(h.Timestamp) == "" {
			return nil, fail("highlights[%d].timestamp must be a non-empty string", i)
		}
		if strings.TrimSpace(h.Title) == "" {
			return nil, fail("highlights[%d].title must be a non-empty string", i)
		}
	}
	md := renderHighlights(out)
	return &Normalized{JSON: canonical(out), Markdown: md}, nil
}

func renderHighlights(h Highlights) string {
	var sb strings.Builder
	for _, item := range h.Highlights {
		fmt.Fprintf(&sb, "- **%s** %s", item.Timestamp, item.Title)
		if item.Reason != "" {
			fmt.Fprintf(&sb, ": %s", item.Reason)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// --- narrative --------------------------------------------------------------

type Narrative struct {
	Narrative string   `json:"narrative"`
	Chapters  []string `json:"chapters,omitempty"`
}

func validateNarrative(raw json.RawMessage) (*Normalized, *ValidationError) {
	var out Narrative
	if verr := decodeStrict(raw, &out); verr != nil {
		return nil, verr
	}
	if strings.TrimSpace(out.Narrative) == "" {
		return nil, fail("narrative must be a non-empty string")
	}
	return &Normalized{JSON: canonical(out), Markdown: out.Narrative}, nil
}

// --- overview ---------------------------------------------------------------

type Overview struct {
	Summary    string   `json:"summary"`
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
	Verdict    string   `json:"verdict"`
}

func validateOverview(raw json.RawMessage) (*Normalized, *ValidationError) {
	var out Overview
	if verr := decodeStrict(raw, &out); verr != nil {
		return nil, verr
	}
	if strings.TrimSpace(out.Summary) == "" {
		return nil, fail("summary must be a non-empty string")
	}
	if strings.TrimSpace(out.Verdict) == "" {
		return nil, fail("verdict must be a non-empty string")
	}
	return &Normalized{JSON: canonical(out)}, nil
}
