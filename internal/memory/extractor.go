package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Marker is one task marker found in a piece of text.
type Marker struct {
	Type        TaskType
	Assignee    string
	Description string
	Due         string
	// Offset is the byte offset of the keyword within the scanned text.
	Offset int
}

var markerKeywords = []TaskType{TaskTodo, TaskFixme, TaskAction, TaskTask}

// ParseMarkers scans text line by line for markers of the form
//
//	KEYWORD[(assignee)]: description [by YYYY-MM-DD]
//
// Keywords match case-insensitively at a word boundary; only the first
// marker on a line counts.
func ParseMarkers(text string) []Marker {
	var out []Marker
	lineStart := 0
	for lineStart <= len(text) {
		end := strings.IndexByte(text[lineStart:], '\n')
		if end < 0 {
			end = len(text) - lineStart
		}
		line := strings.TrimSuffix(text[lineStart:lineStart+end], "\r")
		if m, ok := parseLine(line); ok {
			m.Offset += lineStart
			out = append(out, m)
		}
		lineStart += end + 1
	}
	return out
}

func parseLine(line string) (Marker, bool) {
	for pos := 0; pos < len(line); pos++ {
		if pos > 0 && isWordByte(line[pos-1]) {
			continue
		}
		typ, n := keywordAt(line[pos:])
		if n == 0 {
			continue
		}
		if m, ok := parseMarker(line[pos+n:]); ok {
			m.Type = typ
			m.Offset = pos
			return m, true
		}
	}
	return Marker{}, false
}

func keywordAt(s string) (TaskType, int) {
	for _, kw := range markerKeywords {
		if len(s) >= len(kw) && strings.EqualFold(s[:len(kw)], string(kw)) {
			return kw, len(kw)
		}
	}
	return "", 0
}

// parseMarker parses what follows the keyword: an optional parenthesised
// assignee, a colon and a non-empty description.
func parseMarker(rest string) (Marker, bool) {
	var m Marker
	if strings.HasPrefix(rest, "(") {
		closeIdx := strings.IndexByte(rest, ')')
		if closeIdx <= 1 {
			return m, false
		}
		m.Assignee = strings.TrimSpace(rest[1:closeIdx])
		rest = rest[closeIdx+1:]
	}
	if !strings.HasPrefix(rest, ":") {
		return m, false
	}
	desc := strings.TrimSpace(rest[1:])
	if desc == "" {
		return m, false
	}
	m.Description, m.Due = splitDue(desc)
	return m, m.Description != ""
}

// splitDue strips a trailing "by YYYY-MM-DD" from desc.
func splitDue(desc string) (string, string) {
	const dateLen = len("2006-01-02")
	if len(desc) < dateLen+4 {
		return desc, ""
	}
	date := desc[len(desc)-dateLen:]
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return desc, ""
	}
	head := strings.TrimRight(desc[:len(desc)-dateLen], " \t")
	if len(head) < 3 || !strings.EqualFold(head[len(head)-2:], "by") {
		return desc, ""
	}
	before := head[:len(head)-2]
	if before != "" && before[len(before)-1] != ' ' && before[len(before)-1] != '\t' {
		return desc, ""
	}
	return strings.TrimSpace(before), date
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// TaskID derives the stable id of the marker at offset in a thought.
func TaskID(branchID, thoughtID string, offset int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", branchID, thoughtID, offset)))
	return "task-" + hex.EncodeToString(sum[:])[:12]
}

// NewTask builds an open task from a marker found in a thought.
func NewTask(branchID, thoughtID string, m Marker, now time.Time) Task {
	priority := PriorityNormal
	if m.Type == TaskFixme {
		priority = PriorityHigh
	}
	return Task{
		ID:        TaskID(branchID, thoughtID, m.Offset),
		BranchID:  branchID,
		ThoughtID: thoughtID,
		Type:      m.Type,
		Content:   m.Description,
		Status:    StatusOpen,
		Assignee:  m.Assignee,
		Due:       m.Due,
		Priority:  priority,
		Offset:    m.Offset,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
