package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// WhatsAppLink builds a wa.me deep link that opens a chat with the
// book owner and pre-fills a templated message.  The phone number is
// normalized to digits only (wa.me rejects "+", spaces and dashes).
// An optional requester note is appended after the template.
func WhatsAppLink(phone, requesterName, bookTitle, note string) string {
	msg := fmt.Sprintf("Hi! I'm %s and I'd like to borrow %q via MeetRead.", requesterName, bookTitle)
	if strings.TrimSpace(note) != "" {
		msg += " " + strings.TrimSpace(note)
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", NormalizePhone(phone), url.QueryEscape(msg))
}

// NormalizePhone strips every non-digit character from a phone number.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
