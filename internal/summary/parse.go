package summary

import (
	"regexp"
	"strings"
)

// Section markers requested by BuildPrompt, in grammar order.
const (
	markerShort     = "Short Summary"
	markerDetailed  = "Detailed Summary"
	markerTakeaways = "Key Takeaways"
)

// Placeholder content for sections the backend did not return.
const (
	PlaceholderShort    = "A short summary of this book is not available yet."
	PlaceholderDetailed = "A detailed summary of this book is not available yet."
)

// PlaceholderTakeaways replaces a missing takeaways section.
var PlaceholderTakeaways = []string{
	"Key insights from this book will be added soon.",
	"Check back later for practical takeaways.",
}

// ParseStatus tags how much of the expected structure was found.
type ParseStatus int

const (
	// Complete means all three sections were present and non-empty.
	Complete ParseStatus = iota
	// Partial means at least one section was substituted with a placeholder.
	Partial
)

func (s ParseStatus) String() string {
	if s == Complete {
		return "complete"
	}
	return "partial"
}

// Parsed is the structured form of a backend summary.
type Parsed struct {
	Status    ParseStatus
	Short     string
	Detailed  string
	Takeaways []string
	// Missing names the sections that were substituted.
	Missing []string
}

// markerPattern matches a section marker line: either a Markdown heading or
// bold prefix followed by the section name and anything after it, or a bare
// line holding only the name with an optional parenthetical and colon. The
// name may be numbered ("1.", "2)").
var markerPattern = regexp.MustCompile(`(?im)^[ \t]*(?:(?:#{1,6}[ \t]*(?:\*\*)?|\*\*)[ \t]*(?:\d+[.)][ \t]*)?(short summary|detailed summary|key takeaways)\b[^\n]*|(?:\d+[.)][ \t]*)?(short summary|detailed summary|key takeaways)[ \t]*(?:\([^)\n]*\))?[ \t]*:?[ \t]*)$`)

var bulletPattern = regexp.MustCompile(`^\s*(?:[-*•+]|\d+[.)])\s+`)

// ParseSections splits backend output on the three section markers. Sections
// may be missing or out of order; the first occurrence of each marker wins.
// Text with no markers at all is treated as the detailed summary.
func ParseSections(text string) Parsed {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	matches := markerPattern.FindAllStringSubmatchIndex(text, -1)

	sections := map[string]string{}
	if len(matches) == 0 {
		if body := strings.TrimSpace(text); body != "" {
			sections[markerDetailed] = body
		}
	}
	for i, m := range matches {
		var name string
		if m[2] >= 0 {
			name = canonicalMarker(text[m[2]:m[3]])
		} else {
			name = canonicalMarker(text[m[4]:m[5]])
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if _, seen := sections[name]; seen {
			continue
		}
		sections[name] = strings.TrimSpace(text[m[1]:end])
	}

	p := Parsed{
		Short:     sections[markerShort],
		Detailed:  sections[markerDetailed],
		Takeaways: parseBullets(sections[markerTakeaways]),
	}
	if p.Short == "" {
		p.Short = PlaceholderShort
		p.Missing = append(p.Missing, markerShort)
	}
	if p.Detailed == "" {
		p.Detailed = PlaceholderDetailed
		p.Missing = append(p.Missing, markerDetailed)
	}
	if len(p.Takeaways) == 0 {
		p.Takeaways = append([]string(nil), PlaceholderTakeaways...)
		p.Missing = append(p.Missing, markerTakeaways)
	}
	if len(p.Missing) > 0 {
		p.Status = Partial
	}
	return p
}

func canonicalMarker(s string) string {
	switch strings.ToLower(s) {
	case "short summary":
		return markerShort
	case "detailed summary":
		return markerDetailed
	default:
		return markerTakeaways
	}
}

// parseBullets returns list items; plain lines count as items when no bullets exist.
func parseBullets(section string) []string {
	var bullets, lines []string
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if loc := bulletPattern.FindStringIndex(line); loc != nil {
			if item := strings.TrimSpace(line[loc[1]:]); item != "" {
				bullets = append(bullets, item)
			}
			continue
		}
		lines = append(lines, trimmed)
	}
	if len(bullets) > 0 {
		return bullets
	}
	return lines
}
