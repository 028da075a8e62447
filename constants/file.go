package constants

import "strings"

// AllowedExtensions holds the image extensions picked up by batch runs.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"bmp":  {},
	"gif":  {},
	"tif":  {},
	"tiff": {},
}

// extToMIME maps normalized extensions to the MIME types sent to model providers.
var extToMIME = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"gif":  "image/gif",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MIMEForExt returns the image MIME type for ext, or "" when unknown.
func MIMEForExt(ext string) string {
	return extToMIME[NormalizeExt(ext)]
}

// IsImageMIME reports whether mt is one of the image types we accept.
func IsImageMIME(mt string) bool {
	mt = strings.ToLower(strings.TrimSpace(mt))
	for _, v := range extToMIME {
		if v == mt {
			return true
		}
	}
	return false
}
