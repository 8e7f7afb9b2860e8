// Package scanner walks a directory of note files and splits each into
// paragraphs, ready to become branches of thoughts.
package scanner

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Note is one scanned note file.
type Note struct {
	Path       string // relative to the scan root, slash separated
	BranchID   string // Path without extension
	Hash       string
	ModTime    time.Time
	Paragraphs []Paragraph
}

// ScanResult holds the output of a full directory scan.
type ScanResult struct {
	Notes  []Note
	Errors []error
}

// ScanOptions controls scanner behaviour.
type ScanOptions struct {
	Root     string
	MaxLines int
}

// Scan walks the notes tree, hashes files, and splits them into paragraphs.
// It does NOT touch the graph; that is the caller's responsibility.
func Scan(opts ScanOptions) ScanResult {
	root := opts.Root
	ignore := NewIgnoreMatcher(root)

	var result ScanResult
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil // Skip unreadable entries.
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if HardIgnore(d.Name()) || ignore.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		note, err := ScanFile(root, rel, opts.MaxLines, ignore)
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil
		}
		if note != nil {
			result.Notes = append(result.Notes, *note)
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	return result
}

// ScanFile scans a single file. relPath is relative to root. Returns nil if
// the file should be skipped (not a note, gitignored, inside an ignored dir).
func ScanFile(root, relPath string, maxLines int, ignore *IgnoreMatcher) (*Note, error) {
	name := filepath.Base(relPath)

	// Check hard-ignore on every directory component.
	for _, part := range strings.Split(filepath.Dir(relPath), string(filepath.Separator)) {
		if HardIgnore(part) {
			return nil, nil
		}
	}
	if !IsNoteFile(name) || ignore.Match(relPath) {
		return nil, nil
	}

	absPath := filepath.Join(root, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}

	var modTime time.Time
	if info, err := os.Stat(absPath); err == nil {
		modTime = info.ModTime()
	}

	slashed := filepath.ToSlash(relPath)
	return &Note{
		Path:       slashed,
		BranchID:   BranchIDForPath(slashed),
		Hash:       fmt.Sprintf("%x", sha256.Sum256(content)),
		ModTime:    modTime,
		Paragraphs: SplitParagraphs(string(content), maxLines),
	}, nil
}

// BranchIDForPath derives a branch id from a note path.
func BranchIDForPath(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	return strings.TrimSuffix(relPath, filepath.Ext(relPath))
}

// FindProjectRoot walks up from startDir looking for a .branchmind or .git
// directory. It falls back to startDir.
func FindProjectRoot(startDir string) (string, error) {
	markers := []string{".branchmind", ".git"}

	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir, nil
		}
		dir = parent
	}
}
