package canvas

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// String returns the value of key rendered as a string, or "" when the key
// is missing or null. Numeric ids come back as json.Number and are rendered
// without exponent.
func (d Data) String(key string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

// Has reports whether key is present, even when its value is null.
func (d Data) Has(key string) bool {
	_, ok := d[key]
	return ok
}
