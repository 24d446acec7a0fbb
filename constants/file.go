package constants

import "strings"

// DatasetUnknown is the dataset type reported when no strategy clears its floor.
const DatasetUnknown = "unknown"

// DatasetError is the dataset type reported for files that cannot be parsed.
const DatasetError = "error"

// AllowedExtensions holds the default allowed file extensions for tabular uploads.
var AllowedExtensions = map[string]struct{}{
	"csv":  {},
	"xlsx": {},
	"xls":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
