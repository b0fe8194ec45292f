// Package progress maps raw translation engine events onto the canonical
// progress event schema.
package progress

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/seantiz/pdf2zh-engine/internal/model"
)

// Raw event keys inspected, in priority order, for a progress value.
var progressKeys = []string{"overall_progress", "stage_progress", "progress"}

// Event types that mark the beginning of work and imply 0%.
const (
	typeStart       = "start"
	typeEngineStart = "engine_start"
)

const defaultStage = "progress"

// FromRaw converts a raw engine event into a progress event. It reports false
// when no percentage can be derived, in which case the event is dropped.
// FromRaw is total: malformed fields never cause a panic or an error.
func FromRaw(raw any) (model.Event, bool) {
	event, ok := raw.(map[string]any)
	if !ok {
		return model.Event{}, false
	}

	pct, ok := percent(event)
	if !ok {
		return model.Event{}, false
	}

	stage := firstText(event, "stage", "type")
	if stage == "" {
		stage = defaultStage
	}
	message := firstText(event, "message")

	return model.ProgressEvent(pct, stage, message), true
}

func percent(event map[string]any) (int, bool) {
	for _, key := range progressKeys {
		v, present := event[key]
		if !present {
			continue
		}
		f, ok := number(v)
		if !ok {
			continue
		}
		if f <= 1 {
			f *= 100
		}
		return clamp(math.RoundToEven(f)), true
	}

	if t, _ := event["type"].(string); t == typeStart || t == typeEngineStart {
		return 0, true
	}
	return 0, false
}

func clamp(f float64) int {
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return int(f)
}

// number interprets v as a finite float. Numeric strings are accepted.
func number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// firstText returns the string form of the first non-empty value among keys.
func firstText(event map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := event[key].(type) {
		case nil:
			continue
		case string:
			if v != "" {
				return v
			}
		case bool:
			if v {
				return "true"
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'g', -1, 64)
			}
		case json.Number:
			if f, err := v.Float64(); err != nil || f != 0 {
				return v.String()
			}
		case int64:
			if v != 0 {
				return strconv.FormatInt(v, 10)
			}
		case int:
			if v != 0 {
				return strconv.Itoa(v)
			}
		case map[string]any:
			if len(v) > 0 {
				return textOf(v)
			}
		case []any:
			if len(v) > 0 {
				return textOf(v)
			}
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func textOf(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
