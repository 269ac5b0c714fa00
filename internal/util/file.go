package util

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// ValidateMimeType sniffs the first 512 bytes of reader and checks the result
// against allowedTypes (prefixes such as "image/" or full types).
func ValidateMimeType(reader io.Reader, allowedTypes []string) (string, error) {
	buffer := make([]byte, 512)
	n, err := reader.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	mimeType := http.DetectContentType(buffer[:n])

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) || mimeType == allowed {
			return mimeType, nil
		}
	}

	return mimeType, errors.New("invalid file type: " + mimeType)
}

func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeImage)
}

// ImageExtension returns the lower-cased extension of name if it is an allowed
// image extension, or "" otherwise.
func ImageExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedImageExtensions {
		if ext == allowed {
			return ext
		}
	}
	return ""
}
