package backup

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func renderBackupObjectKey(template, filename string, now time.Time) string {
	tpl := strings.TrimSpace(template)
	if tpl == "" {
		tpl = defaultS3PathTemplate
	}

	replacer := strings.NewReplacer(
		"{Y}", now.Format("2006"),
		"{m}", now.Format("01"),
		"{d}", now.Format("02"),
		"{filename}", filename,
	)

	key := replacer.Replace(tpl)
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	if key == "" {
		return filename
	}
	return key
}

func camelToSnake(raw string) string {
	raw = strings.TrimSpace(raw)
	runes := []rune(raw)
	if len(runes) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(runes) + 4)

	lastUnderscore := false
	for i, r := range runes {
		if r == '-' || r == ' ' || r == '_' {
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}

		if unicode.IsUpper(r) {
			if i > 0 && !lastUnderscore {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
			continue
		}

		b.WriteRune(unicode.ToLower(r))
		lastUnderscore = false
	}
	return strings.Trim(b.String(), "_")
}

func unixNumberToTime(value float64) (time.Time, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return time.Time{}, false
	}
	abs := math.Abs(value)
	switch {
	case abs >= 1e11:
		return time.UnixMilli(int64(value)).UTC(), true
	case abs >= 1e8:
		return time.Unix(int64(value), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

func parseTimeString(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	layouts := [...]string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return unixNumberToTime(n)
	}
	return time.Time{}, false
}

// normalizeRow renames legacy keys of one document row and unwraps
// extended JSON values. aliases maps snake_case names to column keys.
func normalizeRow(row map[string]interface{}, aliases map[string]string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(row))
	for key, value := range row {
		if key == "__v" {
			continue
		}
		name := camelToSnake(key)
		if alias, ok := aliases[name]; ok {
			name = alias
		}
		v, err := unwrapExtended(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[name] = v
	}
	return out, nil
}

// unwrapExtended turns {"$oid"}, {"$date"} and {"$numberLong"} wrappers
// into plain JSON values.
func unwrapExtended(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		if len(v) == 1 {
			if raw, ok := v["$oid"]; ok {
				s, _ := raw.(string)
				oid, err := primitive.ObjectIDFromHex(s)
				if err != nil {
					return nil, fmt.Errorf("invalid object id %q", s)
				}
				return oid.Hex(), nil
			}
			if raw, ok := v["$date"]; ok {
				return unwrapExtended(raw)
			}
			for _, k := range []string{"$numberLong", "$numberInt", "$numberDouble"} {
				if raw, ok := v[k]; ok {
					s, _ := raw.(string)
					n, err := strconv.ParseFloat(s, 64)
					if err != nil {
						return nil, fmt.Errorf("invalid %s %q", k, s)
					}
					return n, nil
				}
			}
		}
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			if k == "_id" || k == "__v" {
				continue
			}
			u, err := unwrapExtended(item)
			if err != nil {
				return nil, err
			}
			out[k] = u
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, item := range v {
			u, err := unwrapExtended(item)
			if err != nil {
				return nil, err
			}
			out = append(out, u)
		}
		return out, nil
	default:
		return v, nil
	}
}
