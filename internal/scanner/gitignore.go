package scanner

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreMatcher wraps a gitignore pattern matcher.
type IgnoreMatcher struct {
	gi *gitignore.GitIgnore
}

// NewIgnoreMatcher loads .gitignore from the notes root.
// If no .gitignore file is found, the matcher accepts everything.
func NewIgnoreMatcher(root string) *IgnoreMatcher {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return &IgnoreMatcher{}
	}
	gi, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return &IgnoreMatcher{}
	}
	return &IgnoreMatcher{gi: gi}
}

// NewIgnoreMatcherFromLines compiles patterns given in memory.
func NewIgnoreMatcherFromLines(lines ...string) *IgnoreMatcher {
	return &IgnoreMatcher{gi: gitignore.CompileIgnoreLines(lines...)}
}

// Match returns true if the given relative path should be ignored.
func (m *IgnoreMatcher) Match(relPath string) bool {
	if m == nil || m.gi == nil {
		return false
	}
	return m.gi.MatchesPath(filepath.ToSlash(relPath))
}

// hardIgnored contains directories that are always skipped regardless of .gitignore.
var hardIgnored = map[string]bool{
	".git":         true,
	".branchmind":  true,
	".obsidian":    true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"tmp":          true,
}

// HardIgnore returns true if the directory name is always excluded.
func HardIgnore(name string) bool {
	return hardIgnored[name]
}

// noteExtensions are the file types read as notes.
var noteExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".org":      true,
	".rst":      true,
}

// IsNoteFile returns true for files that should be ingested.
func IsNoteFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return noteExtensions[strings.ToLower(filepath.Ext(name))]
}
