package schema

// Manifest vocabulary.
const (
	KeyAllowedFileTypes          = "pfm_allowed_file_types"
	KeyAppDeprecated             = "pfm_app_deprecated"
	KeyAppMax                    = "pfm_app_max"
	KeyAppMin                    = "pfm_app_min"
	KeyAppURL                    = "pfm_app_url"
	KeyConditionals              = "pfm_conditionals"
	KeyContainsAny               = "pfm_contains_any"
	KeyDateAllowPast             = "pfm_date_allow_past"
	KeyDateStyle                 = "pfm_date_style"
	KeyDefault                   = "pfm_default"
	KeyDefaultCopy               = "pfm_default_copy"
	KeyDescription               = "pfm_description"
	KeyDescriptionExtended       = "pfm_description_extended"
	KeyDescriptionReference      = "pfm_description_reference"
	KeyDistribution              = "pfm_distribution"
	KeyDocumentationSource       = "pfm_documentation_source"
	KeyDocumentationURL          = "pfm_documentation_url"
	KeyDomain                    = "pfm_domain"
	KeyEnabled                   = "pfm_enabled"
	KeyExclude                   = "pfm_exclude"
	KeyExcluded                  = "pfm_excluded"
	KeyFormat                    = "pfm_format"
	KeyFormatVersion             = "pfm_format_version"
	KeyHidden                    = "pfm_hidden"
	KeyIcon                      = "pfm_icon"
	KeyInteraction               = "pfm_interaction"
	KeyIOSDeprecated             = "pfm_ios_deprecated"
	KeyIOSMax                    = "pfm_ios_max"
	KeyIOSMin                    = "pfm_ios_min"
	KeyLastModified              = "pfm_last_modified"
	KeyMacOSDeprecated           = "pfm_macos_deprecated"
	KeyMacOSMax                  = "pfm_macos_max"
	KeyMacOSMin                  = "pfm_macos_min"
	KeyName                      = "pfm_name"
	KeyNote                      = "pfm_note"
	KeyNotContainsAny            = "pfm_n_contains_any"
	KeyNotPlatforms              = "pfm_n_platforms"
	KeyNotRangeList              = "pfm_n_range_list"
	KeyPlatforms                 = "pfm_platforms"
	KeyPreferenceDomain          = "pfm_preference_domain"
	KeyPresent                   = "pfm_present"
	KeyRangeList                 = "pfm_range_list"
	KeyRangeListAllowCustomValue = "pfm_range_list_allow_custom_value"
	KeyRangeListTitles           = "pfm_range_list_titles"
	KeyRangeMax                  = "pfm_range_max"
	KeyRangeMin                  = "pfm_range_min"
	KeyRepetitionMax             = "pfm_repetition_max"
	KeyRepetitionMin             = "pfm_repetition_min"
	KeyRequire                   = "pfm_require"
	KeyRequired                  = "pfm_required"
	KeySegments                  = "pfm_segments"
	KeySensitive                 = "pfm_sensitive"
	KeySubdomain                 = "pfm_subdomain"
	KeySubkeys                   = "pfm_subkeys"
	KeySubstitutionSource        = "pfm_substitution_source"
	KeySubstitutionVariables     = "pfm_substitution_variables"
	KeySupervised                = "pfm_supervised"
	KeyTarget                    = "pfm_target"
	KeyTargetConditions          = "pfm_target_conditions"
	KeyTargets                   = "pfm_targets"
	KeyTitle                     = "pfm_title"
	KeyTVOSDeprecated            = "pfm_tvos_deprecated"
	KeyTVOSMax                   = "pfm_tvos_max"
	KeyTVOSMin                   = "pfm_tvos_min"
	KeyType                      = "pfm_type"
	KeyTypeInput                 = "pfm_type_input"
	KeyUnique                    = "pfm_unique"
	KeyUserApproved              = "pfm_user_approved"
	KeyValueCopy                 = "pfm_value_copy"
	KeyValueDecimalPlaces        = "pfm_value_decimal_places"
	KeyValueEmpty                = "pfm_value_empty"
	KeyValueImportProcessor      = "pfm_value_import_processor"
	KeyValueInfoProcessor        = "pfm_value_info_processor"
	KeyValueInverted             = "pfm_value_inverted"
	KeyValuePlaceholder          = "pfm_value_placeholder"
	KeyValueProcessor            = "pfm_value_processor"
	KeyValueUnique               = "pfm_value_unique"
	KeyValueUnit                 = "pfm_value_unit"
	KeyVersion                   = "pfm_version"
	KeyView                      = "pfm_view"
)

// Payload dictionary keys.
const (
	PayloadContent      = "PayloadContent"
	PayloadDescription  = "PayloadDescription"
	PayloadDisplayName  = "PayloadDisplayName"
	PayloadEnabled      = "PayloadEnabled"
	PayloadIdentifier   = "PayloadIdentifier"
	PayloadOrganization = "PayloadOrganization"
	PayloadScope        = "PayloadScope"
	PayloadType         = "PayloadType"
	PayloadUUID         = "PayloadUUID"
	PayloadVersion      = "PayloadVersion"
)

// Placeholder names for the two nodes of a dynamic dictionary.
const (
	PlaceholderKey   = "{{key}}"
	PlaceholderValue = "{{value}}"
)

const (
	// DomainConfiguration is the root profile schema.
	DomainConfiguration = "Configuration"

	// FormatVersionSupported is the newest pfm_format_version understood.
	FormatVersionSupported = 5

	// RangeListConvertMax bounds the integer ranges expanded into a list.
	RangeListConvertMax = 40

	keyPathSeparator = "."
)

// ProfileSubkeys are the identity keys required at the profile root.
var ProfileSubkeys = []string{
	PayloadDescription,
	PayloadDisplayName,
	PayloadIdentifier,
	PayloadType,
	PayloadUUID,
	PayloadScope,
	PayloadVersion,
	PayloadOrganization,
}

// PayloadSubkeys are the identity keys required in every payload.
var PayloadSubkeys = []string{
	PayloadDescription,
	PayloadDisplayName,
	PayloadIdentifier,
	PayloadType,
	PayloadUUID,
	PayloadVersion,
	PayloadOrganization,
}

var subkeyVocabulary = map[string]bool{}

func init() {
	for _, k := range []string{
		KeyAllowedFileTypes, KeyAppDeprecated, KeyAppMax, KeyAppMin, KeyAppURL,
		KeyConditionals, KeyContainsAny, KeyDateAllowPast, KeyDateStyle, KeyDefault,
		KeyDefaultCopy, KeyDescription, KeyDescriptionExtended, KeyDescriptionReference,
		KeyDistribution, KeyDocumentationSource, KeyDocumentationURL, KeyEnabled,
		KeyExclude, KeyExcluded, KeyFormat, KeyHidden, KeyIOSDeprecated, KeyIOSMax,
		KeyIOSMin, KeyMacOSDeprecated, KeyMacOSMax, KeyMacOSMin, KeyName, KeyNote,
		KeyNotPlatforms, KeyPlatforms, KeyRangeList, KeyRangeListAllowCustomValue,
		KeyRangeListTitles, KeyRangeMax, KeyRangeMin, KeyRepetitionMax, KeyRepetitionMin,
		KeyRequire, KeyRequired, KeySegments, KeySensitive, KeySubkeys,
		KeySubstitutionVariables, KeySupervised, KeyTargets, KeyTitle,
		KeyTVOSDeprecated, KeyTVOSMax, KeyTVOSMin, KeyType, KeyTypeInput,
		KeyUserApproved, KeyValueCopy, KeyValueDecimalPlaces, KeyValueImportProcessor,
		KeyValueInfoProcessor, KeyValueInverted, KeyValuePlaceholder, KeyValueProcessor,
		KeyValueUnique, KeyValueUnit, KeyView,
	} {
		subkeyVocabulary[k] = true
	}
}
