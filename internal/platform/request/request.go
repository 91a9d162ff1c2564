// Package request turns raw request bodies into flat field mappings.
package request

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

var ErrMalformed = errors.New("malformed request body")

// Fields is a one-level view of a request body. Absent keys and empty values
// are indistinguishable on purpose: handlers treat both as missing.
type Fields map[string]string

// Decode parses body according to contentType. Form bodies are percent-decoded
// key/value pairs; anything else is read as a JSON object. Without a content
// type the shape is sniffed from the first non-space byte.
func Decode(contentType string, body []byte) (Fields, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = ""
	}

	switch mt {
	case ContentTypeForm:
		return decodeForm(body)
	case "":
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) > 0 && trimmed[0] != '{' && trimmed[0] != '[' {
			return decodeForm(trimmed)
		}
		return decodeJSON(body)
	default:
		return decodeJSON(body)
	}
}

func decodeJSON(body []byte) (Fields, error) {
	f := Fields{}
	if len(bytes.TrimSpace(body)) == 0 {
		return f, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformed
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	doc.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if _, seen := f[k]; seen {
			return true
		}
		switch value.Type {
		case gjson.Null:
		case gjson.String:
			f[k] = value.Str
		default:
			// numbers and booleans keep their literal text, nested
			// objects and arrays their raw JSON
			f[k] = value.Raw
		}
		return true
	})
	return f, nil
}

func decodeForm(body []byte) (Fields, error) {
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	f := make(Fields, len(vals))
	for k, v := range vals {
		if len(v) > 0 {
			f[k] = v[0]
		}
	}
	return f, nil
}

// String returns the trimmed value of key, or "" when absent.
func (f Fields) String(key string) string {
	return strings.TrimSpace(f[key])
}

// First returns the first non-empty value among keys.
func (f Fields) First(keys ...string) string {
	for _, k := range keys {
		if v := f.String(k); v != "" {
			return v
		}
	}
	return ""
}

func (f Fields) Has(key string) bool {
	return f.String(key) != ""
}

// Raw returns the untrimmed value, e.g. a nested JSON object.
func (f Fields) Raw(key string) string {
	return f[key]
}

// Float parses key as a finite number. ok is false when the key is absent.
func (f Fields) Float(key string) (v float64, ok bool, err error) {
	s := f.String(key)
	if s == "" {
		return 0, false, nil
	}
	v, err = ParseFloat(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return v, true, nil
}

// Int64 parses key as an integer. ok is false when the key is absent.
func (f Fields) Int64(key string) (v int64, ok bool, err error) {
	s := f.String(key)
	if s == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%s: not an integer", key)
	}
	return v, true, nil
}

func ParseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a number")
	}
	return v, nil
}

// Bind reads the body of a gin request and decodes it by its content type.
func Bind(c *gin.Context) (Fields, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Decode(c.GetHeader("Content-Type"), body)
}
