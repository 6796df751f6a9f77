package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

const dateLayout = "2006-01-02"

// Args is the loosely-typed parameter map a host passes to a tool.
type Args map[string]any

// checker reads fields out of Args and keeps the first failure. Once a
// field has failed, later reads return zero values.
//
// Optional fields that are absent, nil or a blank string read as omitted
// (nil); hosts commonly send "" for parameters the user left unset.
type checker struct {
	args Args
	err  *ValidationError
}

func check(args Args) *checker {
	return &checker{args: args}
}

// Err returns the first failure, typed as error only when there is one.
func (c *checker) Err() error {
	if c.err == nil {
		return nil
	}
	return c.err
}

func (c *checker) fail(err *ValidationError) {
	if c.err == nil {
		c.err = err
	}
}

// value returns the raw value of field, or ok=false when it is omitted.
func (c *checker) value(field string) (any, bool) {
	if c.err != nil {
		return nil, false
	}
	v, ok := c.args[field]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func (c *checker) requiredString(field string) string {
	s := c.optionalString(field)
	if s == nil {
		c.fail(invalid(MissingField, field, "is required"))
		return ""
	}
	return *s
}

func (c *checker) optionalString(field string) *string {
	v, ok := c.value(field)
	if !ok {
		return nil
	}
	s, isString := v.(string)
	if !isString {
		c.fail(invalid(InvalidType, field, "must be a string, got %T", v))
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}

func (c *checker) optionalInt(field string, min, max int) *int {
	v, ok := c.value(field)
	if !ok {
		return nil
	}
	n, isInt := toInt(v)
	if !isInt {
		c.fail(invalid(InvalidType, field, "must be an integer, got %v", v))
		return nil
	}
	if n < min || n > max {
		c.fail(invalid(OutOfRange, field, "must be between %d and %d, got %d", min, max, n))
		return nil
	}
	return &n
}

// optionalBool accepts a bool or the exact strings "true" and "false".
func (c *checker) optionalBool(field string) *bool {
	v, ok := c.value(field)
	if !ok {
		return nil
	}
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		switch strings.TrimSpace(t) {
		case "true":
			b = true
		case "false":
			b = false
		default:
			c.fail(invalid(InvalidType, field, "must be true or false, got %q", t))
			return nil
		}
	default:
		c.fail(invalid(InvalidType, field, "must be true or false, got %v", v))
		return nil
	}
	return &b
}

// optionalEnum matches case-sensitively against options.
func (c *checker) optionalEnum(field string, options []string) *string {
	s := c.optionalString(field)
	if s == nil {
		return nil
	}
	for _, opt := range options {
		if *s == opt {
			return s
		}
	}
	c.fail(invalid(InvalidEnum, field, "must be one of %s, got %q", quoteList(options), *s))
	return nil
}

func (c *checker) optionalDate(field string) *string {
	s := c.optionalString(field)
	if s == nil {
		return nil
	}
	if _, err := time.Parse(dateLayout, *s); err != nil {
		c.fail(invalid(InvalidDate, field, "must be a date in YYYY-MM-DD format, got %q", *s))
		return nil
	}
	return s
}

// optionalPhrase rejects text longer than maxWords whitespace-separated words.
func (c *checker) optionalPhrase(field string, maxWords int) *string {
	s := c.optionalString(field)
	if s == nil {
		return nil
	}
	if n := len(strings.Fields(*s)); n > maxWords {
		c.fail(invalid(TooLong, field, "must be at most %d words, got %d", maxWords, n))
		return nil
	}
	return s
}

func (c *checker) requiredList(field string) []string {
	list := c.optionalList(field)
	if c.err == nil && len(list) == 0 {
		c.fail(invalid(MissingField, field, "is required"))
	}
	return list
}

// optionalList accepts a comma-separated string, a JSON array string or a
// list value. A bracketed string that is not valid JSON5 has its brackets
// and entry quotes stripped before splitting. Entries are trimmed and empty
// entries dropped; order and duplicates are kept.
func (c *checker) optionalList(field string) []string {
	v, ok := c.value(field)
	if !ok {
		return nil
	}

	var items []any
	switch t := v.(type) {
	case string:
		trimmed := strings.TrimSpace(t)
		if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
			return splitList(trimmed)
		}
		if err := json5.Unmarshal([]byte(trimmed), &items); err != nil {
			return unquoteList(splitList(trimmed[1 : len(trimmed)-1]))
		}
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []any:
		items = t
	default:
		c.fail(invalid(InvalidType, field, "must be a comma-separated string or a list, got %T", v))
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, isString := item.(string)
		if !isString {
			c.fail(invalid(InvalidType, field, "list entries must be strings, got %v", item))
			return nil
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// unquoteList strips quotes left on entries of a bracketed list that was
// not valid JSON5, such as [a.com, 'b.com'].
func unquoteList(entries []string) []string {
	var out []string
	for _, e := range entries {
		if e = strings.Trim(e, ` '"`); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// splitList splits on commas, trims entries and drops empty ones.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// toInt converts the integer encodings hosts send: Go integers, integral
// JSON numbers, json.Number and decimal strings. Magnitudes that do not fit
// an int32 come back as ±MaxInt32 so range checks reject them.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return clampInt64(n), true
	case uint:
		return clampUint64(uint64(n)), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return clampUint64(uint64(n)), true
	case uint64:
		return clampUint64(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return clampInt64(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			if ne, isNum := err.(*strconv.NumError); isNum && ne.Err == strconv.ErrRange {
				if strings.HasPrefix(strings.TrimSpace(n), "-") {
					return math.MinInt32, true
				}
				return math.MaxInt32, true
			}
			return 0, false
		}
		return clampInt64(i), true
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(f), true
}

func clampInt64(i int64) int {
	if i > math.MaxInt32 {
		return math.MaxInt32
	}
	if i < math.MinInt32 {
		return math.MinInt32
	}
	return int(i)
}

func clampUint64(u uint64) int {
	if u > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(u)
}

func quoteList(options []string) string {
	quoted := make([]string, len(options))
	for i, opt := range options {
		quoted[i] = strconv.Quote(opt)
	}
	return strings.Join(quoted, ", ")
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
