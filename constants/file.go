package constants

import "strings"

// ImageMIMETypes maps the allowed cheque-scan extensions to their MIME types.
// Archive entries with any other extension are skipped during unpacking.
var ImageMIMETypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MIMEForExt returns the MIME type for an allowed image extension,
// or "" when the extension is not an accepted scan format.
func MIMEForExt(ext string) string {
	return ImageMIMETypes[NormalizeExt(ext)]
}
