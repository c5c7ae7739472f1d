package schema

import "profilepayloads/internal/value"

const uuidFormat = "^[0-9A-Za-z]{8}-[0-9A-Za-z]{4}-[0-9A-Za-z]{4}-[0-9A-Za-z]{4}-[0-9A-Za-z]{12}$"

// sharedSubkeyTemplate returns the manifest entry synthesized for a missing
// identity key of domain.
func sharedSubkeyTemplate(key, domain string) (map[string]value.Value, bool) {
	str := value.String
	switch key {
	case PayloadDescription:
		return map[string]value.Value{
			KeyName:        str(PayloadDescription),
			KeyTitle:       str("Payload Description"),
			KeyDescription: str("Description of the payload."),
			KeyDefault:     str("Configures " + domain + " settings"),
			KeyType:        str("string"),
		}, true
	case PayloadDisplayName:
		return map[string]value.Value{
			KeyName:        str(PayloadDisplayName),
			KeyTitle:       str("Payload Display Name"),
			KeyDescription: str("Name of the payload."),
			KeyDefault:     str(domain),
			KeyRequire:     str(string(RequireAlways)),
			KeyType:        str("string"),
		}, true
	case PayloadIdentifier:
		return map[string]value.Value{
			KeyName:        str(PayloadIdentifier),
			KeyTitle:       str("Payload Identifier"),
			KeyDescription: str("A unique identifier for the payload, dot-delimited.  Usually root PayloadIdentifier+subidentifier."),
			KeyDefault:     str(domain),
			KeyRequire:     str(string(RequireAlways)),
			KeyType:        str("string"),
		}, true
	case PayloadType:
		return map[string]value.Value{
			KeyName:        str(PayloadType),
			KeyTitle:       str("Payload Type"),
			KeyDescription: str("The type of the payload, a reverse dns string."),
			KeyDefault:     str(domain),
			KeyRequire:     str(string(RequireAlways)),
			KeyType:        str("string"),
		}, true
	case PayloadUUID:
		return map[string]value.Value{
			KeyName:        str(PayloadUUID),
			KeyTitle:       str("Payload UUID"),
			KeyDescription: str("Unique identifier for the payload (format 01234567-89AB-CDEF-0123-456789ABCDEF)."),
			KeyFormat:      str(uuidFormat),
			KeyRequire:     str(string(RequireAlways)),
			KeyType:        str("string"),
		}, true
	case PayloadVersion:
		return map[string]value.Value{
			KeyName:        str(PayloadVersion),
			KeyTitle:       str("Payload Version"),
			KeyDescription: str("The version of the whole configuration profile."),
			KeyDefault:     value.Int(1),
			KeyRequire:     str(string(RequireAlways)),
			KeyType:        str("integer"),
		}, true
	case PayloadOrganization:
		return map[string]value.Value{
			KeyName:        str(PayloadOrganization),
			KeyTitle:       str("Payload Organization"),
			KeyDescription: str("This value describes the issuing organization of the profile, as displayed to the user."),
			KeyType:        str("string"),
		}, true
	case PayloadScope:
		return map[string]value.Value{
			KeyName:        str(PayloadScope),
			KeyTitle:       str("Payload Scope"),
			KeyDescription: str("Scope of the Profile. (This choice might change when exporting if a payload is unavailable in the selected scope)."),
			KeyEnabled:     value.Bool(true),
			KeyDefault:     str("User"),
			KeyRangeList:   value.Strings("User", "System"),
			KeyType:        str("string"),
		}, true
	}
	return nil, false
}

// requiredSubkeyTemplates returns the identity entries in declaration order.
func requiredSubkeyTemplates(domain string) []map[string]value.Value {
	out := make([]map[string]value.Value, 0, len(PayloadSubkeys))
	for _, key := range PayloadSubkeys {
		if t, ok := sharedSubkeyTemplate(key, domain); ok {
			out = append(out, t)
		}
	}
	return out
}
