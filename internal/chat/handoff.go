package chat

import (
	"net/url"
	"strings"
)

const (
	// HandOffMarker in assistant text asks the widget to show the WhatsApp button.
	HandOffMarker = "[OFFER_WHATSAPP]"

	SummaryPrefix  = "I am enquiring about"
	DefaultSummary = SummaryPrefix + " your AI services."
)

// SanitizeSummary normalizes model output into a single line that always
// begins with SummaryPrefix.
func SanitizeSummary(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), "\"'`*_# ")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return DefaultSummary
	}

	if len(s) >= len(SummaryPrefix) && strings.EqualFold(s[:len(SummaryPrefix)], SummaryPrefix) {
		return SummaryPrefix + s[len(SummaryPrefix):]
	}
	return SummaryPrefix + " " + s
}

// HandOffLinks returns the wa.me link for phones and the WhatsApp Web link
// for desktops, both prefilled with summary.
func HandOffLinks(phone, summary string) (mobile, desktop string) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	text := strings.ReplaceAll(url.QueryEscape(summary), "+", "%20")

	mobile = "https://wa.me/" + digits + "?text=" + text
	desktop = "https://web.whatsapp.com/send?phone=" + digits + "&text=" + text
	return mobile, desktop
}

// stripMarker removes the hand-off marker and reports whether it was present.
func stripMarker(content string) (string, bool) {
	if !strings.Contains(content, HandOffMarker) {
		return content, false
	}
	return strings.TrimSpace(strings.ReplaceAll(content, HandOffMarker, "")), true
}
