package scanner

import (
	"strings"
)

// DefaultMaxLines caps how many lines a single paragraph may span before it
// is split.
const DefaultMaxLines = 40

// Paragraph is one blank-line separated block of a note.
type Paragraph struct {
	Text      string
	StartLine int // 1-based
	EndLine   int // 1-based, inclusive
	// Heading is the closest markdown heading above the paragraph.
	Heading string
}

// SplitParagraphs splits note content into paragraphs. Heading lines are
// not emitted themselves; they label the paragraphs that follow them.
func SplitParagraphs(content string, maxLines int) []Paragraph {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var out []Paragraph
	var current []string
	heading := ""
	start := 0

	flush := func(end int) {
		if len(current) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text != "" {
			out = append(out, Paragraph{Text: text, StartLine: start, EndLine: end, Heading: heading})
		}
		current = nil
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if h, ok := markdownHeading(trimmed); ok {
			flush(lineNum - 1)
			heading = h
			continue
		}
		if trimmed == "" {
			flush(lineNum - 1)
			continue
		}
		if len(current) == 0 {
			start = lineNum
		}
		current = append(current, line)

		// Force-split if the paragraph is getting too large.
		if len(current) >= maxLines {
			flush(lineNum)
		}
	}
	flush(len(lines))
	return out
}

func markdownHeading(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	level := strings.IndexFunc(line, func(r rune) bool { return r != '#' })
	if level < 0 || level > 6 || line[level] != ' ' {
		return "", false
	}
	return strings.TrimSpace(line[level:]), true
}
