package upload

import (
	"mime"
	"path/filepath"
	"strings"
)

var videoMIMETypes = map[string]bool{
	"video/mp4":        true,
	"video/mpeg":       true,
	"video/ogg":        true,
	"video/webm":       true,
	"video/quicktime":  true,
	"video/x-msvideo":  true,
	"video/x-flv":      true,
	"video/3gpp":       true,
	"video/x-matroska": true,
	"video/av1":        true,
}

// NormalizeContentType returns the bare media type of a supported video
// content type.
func NormalizeContentType(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", ErrUnsupportedMediaType
	}
	mediaType = strings.ToLower(mediaType)
	if !videoMIMETypes[mediaType] {
		return "", ErrUnsupportedMediaType
	}
	return mediaType, nil
}

// SanitizeFilename strips directories and NUL bytes from a client filename.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "\x00", "")
	if filename == "." || filename == ".." || filename == "" || filename == "/" {
		filename = "unnamed"
	}
	return filename
}
