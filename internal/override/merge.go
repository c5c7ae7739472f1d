package override

import (
	"profilepayloads/internal/logging"
	"profilepayloads/internal/value"
)

// NameKey is the field array elements are matched on.
const NameKey = "pfm_name"

// MergeDictionaries deep-merges override on top of source. Neither input is
// modified.
func MergeDictionaries(source, override map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(source)+len(override))
	for k, v := range source {
		out[k] = v
	}
	for k, ov := range override {
		sv, ok := source[k]
		if !ok {
			out[k] = ov
			continue
		}
		out[k] = mergeValue(k, sv, ov)
	}
	return out
}

func mergeValue(key string, source, override value.Value) value.Value {
	switch source.Type() {
	case value.TypeArray:
		sa, _ := source.AsArray()
		oa, ok := override.AsArray()
		if !ok {
			logging.Log.WithField("key", key).Debug("override is not an array, keeping source")
			return source
		}
		return value.Array(MergeArrays(sa, oa)...)
	case value.TypeDictionary:
		sd, _ := source.AsDictionary()
		od, ok := override.AsDictionary()
		if !ok {
			logging.Log.WithField("key", key).Debug("override is not a dictionary, keeping source")
			return source
		}
		return value.Dictionary(MergeDictionaries(sd, od))
	default:
		return override
	}
}

// MergeArrays merges two arrays. When either is empty the other wins.
// Arrays of dictionaries are reconciled by pfm_name: matches merge in source
// order and unmatched override entries are appended in override order.
// Arrays of arrays and of scalars are replaced by the override.
func MergeArrays(source, override []value.Value) []value.Value {
	if len(source) == 0 {
		return clone(override)
	}
	if len(override) == 0 {
		return clone(source)
	}
	switch source[0].Type() {
	case value.TypeArray:
		// nested arrays have no identity to merge on
		return clone(override)
	case value.TypeDictionary:
		return mergeDictionaryArrays(source, override)
	default:
		return clone(override)
	}
}

func mergeDictionaryArrays(source, override []value.Value) []value.Value {
	sourceDicts, ok := value.Array(source...).AsDictionaries()
	if !ok {
		logging.Log.Debug("source array is not uniformly dictionaries, keeping source")
		return clone(source)
	}
	overrideDicts, ok := value.Array(override...).AsDictionaries()
	if !ok {
		logging.Log.Debug("override array is not uniformly dictionaries, keeping source")
		return clone(source)
	}

	pool := make([]map[string]value.Value, len(overrideDicts))
	copy(pool, overrideDicts)
	merged := make([]value.Value, 0, len(source)+len(override))
	for _, dict := range sourceDicts {
		name, ok := nameOf(dict)
		if !ok {
			merged = append(merged, value.Dictionary(dict))
			continue
		}
		idx := -1
		for i, candidate := range pool {
			if n, ok := nameOf(candidate); ok && n == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			merged = append(merged, value.Dictionary(dict))
			continue
		}
		merged = append(merged, value.Dictionary(MergeDictionaries(dict, pool[idx])))
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	for _, dict := range pool {
		item := value.Dictionary(dict)
		if _, named := nameOf(dict); !named && value.Contains(merged, item) {
			continue
		}
		merged = append(merged, item)
	}
	return merged
}

func nameOf(dict map[string]value.Value) (string, bool) {
	v, ok := dict[NameKey]
	if !ok {
		return "", false
	}
	return v.AsString()
}

func clone(items []value.Value) []value.Value {
	out := make([]value.Value, len(items))
	copy(out, items)
	return out
}

// Merge merges two dictionary values. A non-dictionary override leaves the
// source untouched.
func Merge(source, override value.Value) value.Value {
	sd, ok := source.AsDictionary()
	if !ok {
		return override
	}
	od, ok := override.AsDictionary()
	if !ok {
		return source
	}
	return value.Dictionary(MergeDictionaries(sd, od))
}
