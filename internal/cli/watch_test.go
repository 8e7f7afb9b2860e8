package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/memvra/branchmind/internal/scanner"
)

func TestShouldIgnoreEvent(t *testing.T) {
	dir := t.TempDir()
	ignore := scanner.NewIgnoreMatcher(dir)

	tests := []struct {
		rel  string
		want bool
	}{
		{"ideas.md", false},
		{"research/caching.md", false},
		{"node_modules/pkg/README.md", true},
		{".git/HEAD", true},
		{".branchmind/branchmind.db", true},
		{".obsidian/workspace.json", true},
	}

	for _, tt := range tests {
		got := shouldIgnoreEvent(tt.rel, ignore)
		if got != tt.want {
			t.Errorf("shouldIgnoreEvent(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestAddWatchDirs_SkipsIgnored(t *testing.T) {
	dir := t.TempDir()

	// Create a normal dir and a hard-ignored dir.
	os.MkdirAll(filepath.Join(dir, "research"), 0o755)
	os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0o755)
	os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer watcher.Close()

	ignore := scanner.NewIgnoreMatcher(dir)
	if err := addWatchDirs(watcher, dir, ignore); err != nil {
		t.Fatalf("addWatchDirs: %v", err)
	}

	watchList := watcher.WatchList()
	watched := make(map[string]bool)
	for _, p := range watchList {
		rel, _ := filepath.Rel(dir, p)
		watched[rel] = true
	}

	if !watched["."] {
		t.Error("root directory should be watched")
	}
	if !watched["research"] {
		t.Error("research/ should be watched")
	}
	if watched["node_modules"] || watched[filepath.Join("node_modules", "pkg")] {
		t.Error("node_modules should not be watched")
	}
	if watched[".git"] || watched[filepath.Join(".git", "objects")] {
		t.Error(".git should not be watched")
	}
}

func TestShouldIgnoreEvent_Gitignore(t *testing.T) {
	ignore := scanner.NewIgnoreMatcherFromLines("drafts/")
	if !shouldIgnoreEvent(filepath.Join("drafts", "wip.md"), ignore) {
		t.Error("gitignored drafts/ should be ignored")
	}
	if shouldIgnoreEvent("final.md", ignore) {
		t.Error("final.md should not be ignored")
	}
}

func TestProcessChanges_IngestsChangedNotes(t *testing.T) {
	root := isolate(t)
	writeNote(t, root, "journal.md", "first entry\n\nTODO: second entry")

	sess, err := openSession(root)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer sess.Close()

	var out bytes.Buffer
	ignore := scanner.NewIgnoreMatcher(root)
	stats := processChanges(context.Background(), &out, root, []string{"journal.md", "gone.md"}, sess, ignore)
	if stats.Notes != 1 || stats.Thoughts != 2 {
		t.Fatalf("stats = %+v, want 1 note and 2 thoughts", stats)
	}
	if !strings.Contains(out.String(), "+2 thoughts") {
		t.Errorf("output = %q", out.String())
	}

	// An unchanged note produces no output.
	out.Reset()
	stats = processChanges(context.Background(), &out, root, []string{"journal.md"}, sess, ignore)
	if stats.Thoughts != 0 || out.Len() != 0 {
		t.Errorf("unchanged note: stats = %+v, output = %q", stats, out.String())
	}

	writeNote(t, root, "journal.md", "first entry\n\nTODO: second entry\n\nthird entry")
	stats = processChanges(context.Background(), &out, root, []string{"journal.md"}, sess, ignore)
	if stats.Thoughts != 1 {
		t.Errorf("appended paragraph: stats = %+v, want 1 thought", stats)
	}
	b, err := sess.GetBranch("journal")
	if err != nil {
		t.Fatalf("GetBranch: %v", err)
	}
	if len(b.Thoughts) != 3 {
		t.Errorf("branch has %d thoughts, want 3", len(b.Thoughts))
	}
}
