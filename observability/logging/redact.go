package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// marketplaceKeys are logged verbatim even when they contain a credential
// marker, e.g. tokenId.
var marketplaceKeys = map[string]struct{}{
	"service":         {},
	"env":             {},
	"message":         {},
	"severity":        {},
	"timestamp":       {},
	"error":           {},
	"reason":          {},
	"component":       {},
	"operation":       {},
	"offeringid":      {},
	"tokenid":         {},
	"height":          {},
	"instructions":    {},
	"instructionroot": {},
	"type":            {},
	"datadir":         {},
	"addressprefix":   {},
	"strictdenom":     {},
}

var credentialMarkers = []string{"token", "secret", "password", "dsn", "authorization", "credential"}

// IsAllowlisted reports whether key is a marketplace field that is never
// redacted.
func IsAllowlisted(key string) bool {
	_, ok := marketplaceKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

func isCredential(key string) bool {
	normalized := strings.ToLower(key)
	for _, marker := range credentialMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. The original key casing is preserved for readability.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// redactAttr masks non-empty string attributes whose key names a credential.
// Every logger built by SetupWriter passes its attributes through it.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || IsAllowlisted(attr.Key) || !isCredential(attr.Key) {
		return attr
	}
	if strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
