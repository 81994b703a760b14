package validate

import "fmt"

// Text field length limits shared by the API and the embed page.
const (
	MaxTitleLength            = 500
	MaxAPIKeyNameLength       = 100
	MaxInteractionLabelLength = 200
	MaxLibraryLength          = 255
	MaxParamsBytes            = 64 * 1024
	MaxFileKeyLength          = 1024
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string      { return checkLen(s, MaxTitleLength, "title") }
func APIKeyName(s string) string { return checkLen(s, MaxAPIKeyNameLength, "API key name") }
func FileKey(s string) string    { return checkLen(s, MaxFileKeyLength, "file key") }
func InteractionLabel(s string) string {
	return checkLen(s, MaxInteractionLabelLength, "interaction label")
}
func Library(s string) string { return checkLen(s, MaxLibraryLength, "library") }

func Params(b []byte) string {
	if len(b) > MaxParamsBytes {
		return fmt.Sprintf("params must be %d bytes or fewer", MaxParamsBytes)
	}
	return ""
}

// VideoDuration bounds the declared length of a video in seconds.
func VideoDuration(seconds float64) string {
	if seconds <= 0 {
		return "duration must be positive"
	}
	if seconds > 24*60*60 {
		return "duration must be 24 hours or less"
	}
	return ""
}

// FieldLimits returns a map of field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"title":            MaxTitleLength,
		"apiKeyName":       MaxAPIKeyNameLength,
		"interactionLabel": MaxInteractionLabelLength,
		"library":          MaxLibraryLength,
		"params":           MaxParamsBytes,
	}
}
