package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/orderproof/constants"
)

// AllowedExt checks if a file extension is one of the supported image types.
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}

func extSet(includeExts []string) map[string]struct{} {
	if len(includeExts) == 0 {
		return constants.AllowedExtensions
	}
	exts := map[string]struct{}{}
	for _, e := range includeExts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			exts[e] = struct{}{}
		}
	}
	return exts
}

// allowed reports whether path has an extension in exts that maps to an image
// type. Non-image extensions in an include list are ignored.
func allowed(path string, exts map[string]struct{}) bool {
	ext := filepath.Ext(path)
	if constants.MIMEForExt(ext) == "" {
		return false
	}
	_, ok := exts[constants.NormalizeExt(ext)]
	return ok
}
