package slogx

import (
	"log/slog"
	"strings"
)

// MaskEmail keeps the first character of the local part and the domain:
// "alice@example.com" becomes "a***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// Email returns a log attribute holding a masked email address.
func Email(email string) slog.Attr {
	return slog.String("email", MaskEmail(email))
}
