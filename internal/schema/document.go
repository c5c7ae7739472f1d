package schema

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"profilepayloads/internal/codec"
	"profilepayloads/internal/value"
)

// DefaultDocument renders a JSON settings document holding every default
// declared in p, placed at each subkey's value key path. Dynamic dictionary
// placeholders are skipped.
func DefaultDocument(p *Payload) ([]byte, error) {
	doc := []byte("{}")
	for _, s := range p.AllSubkeys() {
		if s.Default.IsUndefined() || strings.Contains(s.KeyPath, "{{") {
			continue
		}
		raw, err := codec.Encode(s.Default, codec.FormatJSON)
		if err != nil {
			return nil, fmt.Errorf("PFM_DOCUMENT: %s: %w", s.KeyPath, err)
		}
		doc, err = sjson.SetRawBytes(doc, documentPath(s, true), raw)
		if err != nil {
			return nil, fmt.Errorf("PFM_DOCUMENT: %s: %w", s.KeyPath, err)
		}
	}
	return doc, nil
}

// Lookup reads the value stored for s in a JSON settings document and
// coerces it to s's storage type.
func Lookup(doc []byte, s *Subkey) (value.Value, bool) {
	r := gjson.GetBytes(doc, documentPath(s, false))
	if !r.Exists() {
		return value.Undefined(), false
	}
	v, err := codec.Decode([]byte(r.Raw), codec.FormatJSON)
	if err != nil {
		return value.Undefined(), false
	}
	return coerce(v, s.Type), true
}

// documentPath joins the value key path components of s, escaped for the
// gjson and sjson path syntax. Object keys that look like indexes get the
// sjson ':' prefix when forSet is true.
func documentPath(s *Subkey, forSet bool) string {
	chain := append(s.Ancestors(), s)
	parts := make([]string, 0, len(chain))
	for i, node := range chain {
		if i > 0 && chain[i-1].Type == value.TypeArray {
			parts = append(parts, "0")
			continue
		}
		part := escapePathComponent(node.Key)
		if forSet && isIndex(node.Key) {
			part = ":" + part
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ".")
}

func escapePathComponent(key string) string {
	var b strings.Builder
	for _, r := range key {
		if strings.ContainsRune(`\.*?|#@!=<>%:`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isIndex(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func coerce(v value.Value, t value.Type) value.Value {
	switch t {
	case value.TypeFloat:
		if i, ok := v.AsInt(); ok {
			return value.Float(float64(i))
		}
	case value.TypeDate:
		if str, ok := v.AsString(); ok {
			if ts, err := time.Parse(time.RFC3339, str); err == nil {
				return value.Date(ts)
			}
		}
	case value.TypeData:
		if str, ok := v.AsString(); ok {
			if b, err := base64.StdEncoding.DecodeString(str); err == nil {
				return value.Data(b)
			}
		}
	}
	return v
}
