package codec

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"profilepayloads/internal/value"
)

// Format names a supported serialization.
type Format string

const (
	FormatPlist Format = "plist"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// FormatForPath picks a format from a file extension. Extension-less paths
// (repository index files) are sniffed from their content by Decode.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".plist", ".mobileconfig":
		return FormatPlist, true
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return "", false
}

// Sniff guesses the format of data.
func Sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("bplist")):
		return FormatPlist
	case bytes.HasPrefix(trimmed, []byte("<?xml")), bytes.HasPrefix(trimmed, []byte("<plist")), bytes.HasPrefix(trimmed, []byte("<!DOCTYPE plist")):
		return FormatPlist
	case bytes.HasPrefix(trimmed, []byte("{")), bytes.HasPrefix(trimmed, []byte("[")):
		return FormatJSON
	}
	return FormatYAML
}

// Decode turns bytes into a value tree. An empty format sniffs the content.
func Decode(data []byte, format Format) (value.Value, error) {
	if format == "" {
		format = Sniff(data)
	}
	var raw any
	switch format {
	case FormatPlist:
		if _, err := plist.Unmarshal(data, &raw); err != nil {
			return value.Undefined(), fmt.Errorf("PFM_DECODE_PLIST: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return value.Undefined(), fmt.Errorf("PFM_DECODE_JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return value.Undefined(), fmt.Errorf("PFM_DECODE_YAML: %w", err)
		}
	default:
		return value.Undefined(), fmt.Errorf("PFM_DECODE: unsupported format %q", format)
	}
	return value.FromNative(raw), nil
}

// DecodeDictionary decodes data and requires a dictionary at the top level.
func DecodeDictionary(data []byte, format Format) (value.Value, error) {
	v, err := Decode(data, format)
	if err != nil {
		return v, err
	}
	if v.Type() != value.TypeDictionary {
		return value.Undefined(), fmt.Errorf("PFM_DECODE: expected a dictionary, got %s", v.Type())
	}
	return v, nil
}

// Encode serializes v. Undefined entries are dropped since none of the
// formats can carry them.
func Encode(v value.Value, format Format) ([]byte, error) {
	native := encodable(v)
	switch format {
	case FormatPlist:
		blob, err := plist.MarshalIndent(native, plist.XMLFormat, "\t")
		if err != nil {
			return nil, fmt.Errorf("PFM_ENCODE_PLIST: %w", err)
		}
		return blob, nil
	case FormatJSON:
		blob, err := json.MarshalIndent(native, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("PFM_ENCODE_JSON: %w", err)
		}
		return blob, nil
	case FormatYAML:
		blob, err := yaml.Marshal(native)
		if err != nil {
			return nil, fmt.Errorf("PFM_ENCODE_YAML: %w", err)
		}
		return blob, nil
	}
	return nil, fmt.Errorf("PFM_ENCODE: unsupported format %q", format)
}

// EncodeBinaryPlist is the archive form used for data-typed dictionaries.
func EncodeBinaryPlist(v value.Value) ([]byte, error) {
	blob, err := plist.Marshal(encodable(v), plist.BinaryFormat)
	if err != nil {
		return nil, fmt.Errorf("PFM_ENCODE_PLIST: %w", err)
	}
	return blob, nil
}

func encodable(v value.Value) any {
	switch v.Type() {
	case value.TypeArray:
		items, _ := v.AsArray()
		out := make([]any, 0, len(items))
		for _, item := range items {
			if item.IsUndefined() {
				continue
			}
			out = append(out, encodable(item))
		}
		return out
	case value.TypeDictionary:
		dict, _ := v.AsDictionary()
		out := make(map[string]any, len(dict))
		for k, item := range dict {
			if item.IsUndefined() {
				continue
			}
			out[k] = encodable(item)
		}
		return out
	}
	return v.ToNative()
}
