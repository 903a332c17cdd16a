package lifecycle

import (
	"mime"
	"strings"
	"time"
)

// Default policy.
const (
	DefaultMaxSize int64 = 50 << 20
	DefaultTTL           = 5 * time.Minute

	DefaultTombstoneRetention = 24 * time.Hour
	DefaultPublishTimeout     = 5 * time.Second
)

// DefaultAllowedTypes is the list of accepted content types.
var DefaultAllowedTypes = []string{
	// Images
	"image/jpeg", "image/png", "image/gif", "image/webp",
	// Documents
	"application/pdf", "text/plain", "text/csv",
	"application/msword", "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint", "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	// Archives
	"application/zip", "application/x-rar-compressed", "application/x-7z-compressed",
	// Video
	"video/mp4", "video/avi", "video/mov", "video/wmv",
	// Audio
	"audio/mp3", "audio/wav", "audio/ogg", "audio/m4a",
}

type typeSet map[string]struct{}

func newTypeSet(types []string) typeSet {
	set := typeSet{}
	for _, t := range types {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}

// allows ignores media type parameters such as charset.
func (s typeSet) allows(contentType string) bool {
	mediatype, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := s[mediatype]
	return ok
}
