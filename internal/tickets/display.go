package tickets

import (
	"strings"

	"golang.org/x/net/html"
)

// Badge classes for ticket status.
const (
	BadgeSuccess = "success"
	BadgeWarning = "warning"
	BadgeInfo    = "info"
)

// SLAAtRisk is true when both values are known and the hours since the last user
// contact strictly exceed the communication SLA.
func SLAAtRisk(hoursSinceContact, slaHours *float64) bool {
	if hoursSinceContact == nil || slaHours == nil {
		return false
	}
	return *hoursSinceContact > *slaHours
}

// StatusBadge maps a free-text status to a badge class.
func StatusBadge(status string) string {
	s := strings.ToLower(status)
	switch {
	case s == "cerrado":
		return BadgeSuccess
	case strings.Contains(s, "pend"), strings.Contains(s, "hold"):
		return BadgeWarning
	default:
		return BadgeInfo
	}
}

// skipText lists elements whose content never shows as text.
var skipText = map[string]bool{
	"script": true,
	"style":  true,
	"head":   true,
	"title":  true,
}

// PlainText renders markup as its text content. Strings without '<' are returned
// unchanged, as is the input when no text can be extracted.
func PlainText(value string) string {
	if !strings.Contains(value, "<") {
		return value
	}

	var b strings.Builder
	skipDepth := 0
	tokenizer := html.NewTokenizer(strings.NewReader(value))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if text := b.String(); text != "" {
				return text
			}
			return value
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if skipText[strings.ToLower(string(tn))] {
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if skipText[strings.ToLower(string(tn))] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}
