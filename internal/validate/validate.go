// Package validate provides input validation helpers for medremind.
package validate

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/model"
)

const (
	// MaxUserIDLength is the maximum length for a user id.
	MaxUserIDLength = 64
	// MaxURLLength is the maximum length for a URL.
	MaxURLLength = 2048
	// MaxMedicationNameLength is the maximum length for a medication name.
	MaxMedicationNameLength = 128
	// MaxFieldLength bounds dosage, frequency and duration text.
	MaxFieldLength = 256
	// MaxNoteLength is the maximum length for instructions and notes.
	MaxNoteLength = 4096
)

// userIDRegex validates user ids (alphanumeric, dashes, underscores, periods).
var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// UserID validates a user id.
func UserID(id string) error {
	if id == "" {
		return errors.Invalid(errors.ErrUserRequired, "user", id)
	}
	if len(id) > MaxUserIDLength {
		return errors.NewUserErrorWithField("user", id,
			"User id too long",
			"User ids must be 64 characters or fewer")
	}
	if !userIDRegex.MatchString(id) {
		return errors.NewUserErrorWithField("user", id,
			"Invalid user id format",
			"User ids must start with a letter or number and contain only letters, numbers, dashes, underscores, or periods")
	}
	return nil
}

// MedicationName validates a medication name.
func MedicationName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.Invalid(errors.ErrNameRequired, "name", name)
	}
	if utf8.RuneCountInString(name) > MaxMedicationNameLength {
		return errors.NewUserErrorWithField("name", name,
			"Medication name too long",
			"Medication names must be 128 characters or fewer")
	}
	return nil
}

// Field validates the length of a short free-text field such as a dosage.
func Field(field, value string) error {
	if utf8.RuneCountInString(value) > MaxFieldLength {
		return errors.NewUserErrorWithField(field, "",
			field+" too long",
			"Keep "+field+" to 256 characters or fewer")
	}
	return nil
}

// Note validates instructions or notes.
func Note(note string) error {
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return errors.NewUserError(
			"Note too long",
			"Notes must be 4096 characters or fewer")
	}
	return nil
}

// Clock validates a 24h HH:MM reminder time.
func Clock(hhmm string) error {
	if _, _, err := model.ParseClock(hhmm); err != nil {
		return errors.Invalid(errors.ErrInvalidClock, "time", hhmm)
	}
	return nil
}

// WebhookName validates a webhook name.
func WebhookName(name string) error {
	if !model.IsValidWebhookName(name) {
		return errors.NewUserErrorWithField("name", name,
			"Invalid webhook name",
			"Names must start with a letter or number and contain only letters, numbers, dashes, or underscores (max 50)")
	}
	return nil
}

// URL validates a URL for use as a webhook endpoint.
func URL(rawURL string) error {
	if rawURL == "" {
		return errors.Invalid(errors.ErrInvalidURL, "url", rawURL)
	}
	if len(rawURL) > MaxURLLength {
		return errors.NewUserError("URL too long", "URLs must be 2048 characters or fewer")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Invalid(errors.ErrInvalidURL, "url", rawURL)
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL scheme",
			"URLs must use https:// (or http:// for localhost)")
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL: missing hostname",
			"Provide a valid URL like https://example.com/webhook")
	}

	isLocalhost := hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"

	if parsed.Scheme == "http" && !isLocalhost {
		return errors.NewUserErrorWithField("url", rawURL,
			"HTTP not allowed for external URLs",
			"Use https:// for security. HTTP is only allowed for localhost.")
	}

	// SSRF protection
	if !isLocalhost {
		if err := checkInternalIP(hostname); err != nil {
			return err
		}
	}

	return nil
}

// checkInternalIP checks if a hostname resolves to an internal IP.
func checkInternalIP(hostname string) error {
	if ip := net.ParseIP(hostname); ip != nil {
		if isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Internal IP addresses not allowed",
				"Webhook URLs must point to external services")
		}
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		// unresolvable now; delivery fails later
		return nil
	}

	for _, ip := range ips {
		if isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Hostname resolves to internal IP",
				"Webhook URLs must point to external services")
		}
	}

	return nil
}

var privateRanges = func() []*net.IPNet {
	cidrs := []string{
		"10.0.0.0/8",     // RFC 1918
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"127.0.0.0/8",    // Loopback
		"169.254.0.0/16", // Link-local
		"fc00::/7",       // IPv6 private
		"fe80::/10",      // IPv6 link-local
		"::1/128",        // IPv6 loopback
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			nets = append(nets, network)
		}
	}
	return nets
}()

// isInternalIP checks if an IP is in a private/internal range.
func isInternalIP(ip net.IP) bool {
	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
