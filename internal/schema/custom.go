package schema

import (
	"time"

	"profilepayloads/internal/value"
)

// CustomManifest describes ad-hoc payload content by its PayloadType. The
// content's own keys become subkeys with their values as defaults.
func CustomManifest(content map[string]value.Value, now time.Time) (map[string]value.Value, bool) {
	payloadType, ok := content[PayloadType].AsString()
	if !ok || payloadType == "" {
		return nil, false
	}
	subkeys := []value.Value{value.Dictionary(map[string]value.Value{
		KeyName:    value.String(PayloadType),
		KeyType:    value.String(value.TypeString.String()),
		KeyDefault: value.String(payloadType),
	})}
	for _, key := range sortedKeys(content) {
		if key == PayloadType {
			continue
		}
		v := content[key]
		subkeys = append(subkeys, value.Dictionary(preferenceEntry(key, v, value.TypeOf(v))))
	}
	return map[string]value.Value{
		KeyDomain:        value.String(payloadType),
		KeyTitle:         value.String(payloadType),
		KeyDescription:   value.String(payloadType + " settings"),
		KeyFormatVersion: value.Int(1),
		KeyVersion:       value.Int(1),
		KeyUnique:        value.Bool(false),
		KeyLastModified:  value.Date(now),
		KeyPlatforms:     value.Strings(PlatformsAll.Names()...),
		KeyTargets:       value.Strings(TargetsAll.Names()...),
		KeyDistribution:  value.Strings(DistributionAll.Names()...),
		KeySupervised:    value.Bool(false),
		KeyUserApproved:  value.Bool(false),
		KeyInteraction:   value.String(string(InteractionUndefined)),
		KeySubkeys:       value.Array(subkeys...),
	}, true
}

// NewCustomPayload builds a payload from one or more content dictionaries
// sharing the first one's PayloadType.
func NewCustomPayload(content []map[string]value.Value, hash string) (*Payload, error) {
	if len(content) == 0 {
		return nil, invalid("custom payload has no content")
	}
	manifest, ok := CustomManifest(content[0], time.Now())
	if !ok {
		return nil, invalid("custom payload content has no %s", PayloadType)
	}
	return Parse(manifest, Custom(content), hash)
}
