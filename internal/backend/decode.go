package backend

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

var timeType = reflect.TypeOf(time.Time{})

// Layouts accepted for timestamps, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// decode maps a backend JSON payload onto target.
// Field names are compared after lower-casing and dropping '_' and '-', so
// snake_case and camelCase payloads land in the same struct fields.
// Missing or malformed numbers become 0 and unparseable timestamps the zero time.
func decode(body []byte, target any) error {
	var raw any
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	return decodeValue(raw, target)
}

func decodeValue(raw any, target any) error {
	cfg := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			normalizeKeysHook,
			timeHook,
			lenientNumberHook,
		),
		WeaklyTypedInput: true,
		Result:           target,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}

	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

func canonicalKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "").Replace(key)
}

// normalizeKeysHook rewrites keys of objects bound to structs. Maps bound to
// map fields (word frequencies, features) keep their keys as sent.
func normalizeKeysHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() == reflect.Ptr {
		to = to.Elem()
	}
	if to.Kind() != reflect.Struct || to == timeType {
		return data, nil
	}

	m, ok := data.(map[string]any)
	if !ok {
		return data, nil
	}

	out := make(map[string]any, len(m))
	from := make(map[string]string, len(m))
	for k, v := range m {
		key := canonicalKey(k)
		if prev, dup := from[key]; dup && !preferKey(k, v, prev, out[key]) {
			continue
		}
		out[key] = v
		from[key] = k
	}

	return out, nil
}

// preferKey decides between two spellings of the same field: a non-null value
// wins, then the camelCase spelling, then the lexically smaller key.
func preferKey(k string, v any, prev string, prevValue any) bool {
	if (v == nil) != (prevValue == nil) {
		return v != nil
	}
	snake, prevSnake := strings.ContainsAny(k, "_-"), strings.ContainsAny(prev, "_-")
	if snake != prevSnake {
		return !snake
	}
	return k < prev
}

func timeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}

	switch v := data.(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTime(v), nil
	case float64:
		return epochTime(v), nil
	case int64:
		return epochTime(float64(v)), nil
	default:
		return time.Time{}, nil
	}
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochTime(f)
	}

	return time.Time{}
}

// epochTime accepts seconds or milliseconds since epoch.
func epochTime(v float64) time.Time {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}
	}
	if v > 1e11 {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}

func lenientNumberHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}

	switch v := data.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return float64(0), nil
		}
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return float64(0), nil
		}
		return f, nil
	case bool:
		return data, nil
	case map[string]any, []any:
		return float64(0), nil
	default:
		return data, nil
	}
}
