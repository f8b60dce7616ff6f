// Package validator recognizes the source URLs the service accepts.
package validator

import (
	"regexp"
)

const (
	VideoIDLength = 11

	// WatchURLTemplate builds a canonical source URL from a video id.
	WatchURLTemplate = "https://www.youtube.com/watch?v=%s"
)

var (
	sourceURLRegex = regexp.MustCompile(
		`^https?://(?:(?:www\.|m\.)?youtube\.com/(?:watch\?v=|embed/|v/)|(?:www\.)?youtu\.be/)([A-Za-z0-9_-]{11})$`)
	videoIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// IsValidURL reports whether s has the accepted source URL shape.
func IsValidURL(s string) bool {
	return sourceURLRegex.MatchString(s)
}

// VideoID returns the 11 character identifier of a valid source URL.
func VideoID(s string) (string, bool) {
	m := sourceURLRegex.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsValidVideoID reports whether s is a bare video identifier.
func IsValidVideoID(s string) bool {
	return videoIDRegex.MatchString(s)
}
