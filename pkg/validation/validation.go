package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// SourceIDRegex validates source ID format
	SourceIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// DestinationIDRegex validates destination ID format
	DestinationIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// HexColorRegex validates #RRGGBB color strings
	HexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// ValidateSourceID validates a source identifier.
func ValidateSourceID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("source id is required")
	}
	if len(id) > 64 {
		return fmt.Errorf("source id is too long (max 64 characters)")
	}
	if !SourceIDRegex.MatchString(id) {
		return fmt.Errorf("source id contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateDestinationID validates a destination identifier.
func ValidateDestinationID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("destination id is required")
	}
	if len(id) > 64 {
		return fmt.Errorf("destination id is too long (max 64 characters)")
	}
	if !DestinationIDRegex.MatchString(id) {
		return fmt.Errorf("destination id contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateIngestURL validates an RTMP/RTMPS/WHIP ingest URL.
func ValidateIngestURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("ingest url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid ingest url: %w", err)
	}
	switch u.Scheme {
	case "rtmp", "rtmps":
	case "http", "https": // WHIP endpoints
	default:
		return fmt.Errorf("unsupported ingest scheme %q (rtmp, rtmps, http, https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("ingest url has no host")
	}
	return nil
}

// ValidateStreamKey validates a platform stream key.
func ValidateStreamKey(key string) error {
	if key == "" {
		return fmt.Errorf("stream key is required")
	}
	if len(key) > 256 {
		return fmt.Errorf("stream key is too long (max 256 characters)")
	}
	if strings.ContainsAny(key, " \t\r\n") {
		return fmt.Errorf("stream key must not contain whitespace")
	}
	return nil
}

// ValidateHexColor validates a #RRGGBB background color string.
func ValidateHexColor(c string) error {
	if !HexColorRegex.MatchString(c) {
		return fmt.Errorf("invalid color %q, expected #RRGGBB", c)
	}
	return nil
}
