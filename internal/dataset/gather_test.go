package dataset

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func writeTree(t *testing.T, root string, files []string) {
	t.Helper()
	for _, name := range files {
		var path = filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGatherFilesExhaustive(t *testing.T) {
	tests := []struct {
		name  string
		files []string
	}{
		{"flat", []string{"a.txt", "b.txt", "c.gz"}},
		{"nested", []string{"a.txt", "x/b.txt", "x/y/c.txt", "x/y/z/w/d.txt"}},
		{"only deep", []string{"1/2/3/4/5/6/leaf.txt"}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var root = t.TempDir()
			writeTree(t, root, tt.files)
			// empty directories are not files
			os.MkdirAll(filepath.Join(root, "empty", "dir"), 0o755)

			var got = Paths(GatherFiles(root, 0, nil, nil))
			sort.Strings(got)
			var want []string
			for _, f := range tt.files {
				want = append(want, filepath.Join(root, f))
			}
			sort.Strings(want)
			if len(got) != len(want) {
				t.Fatalf("GatherFiles() = %v, want %v", got, want)
			}
			for i := range got {
				if got[i] != want[i] {
					t.Errorf("GatherFiles()[%v] = %v, want %v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestGatherFilesMissingRoot(t *testing.T) {
	var got = GatherFiles(filepath.Join(t.TempDir(), "missing"), 10, ByModTime, nil)
	if len(got) != 0 {
		t.Errorf("GatherFiles() = %v, want empty", got)
	}
}

func TestGatherFilesRecencyCap(t *testing.T) {
	var root = t.TempDir()
	var names = []string{"a", "b/c", "d", "e/f/g", "h", "i"}
	writeTree(t, root, names)
	var base = time.Now().Add(-time.Hour)
	for i, name := range names {
		var mtime = base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(filepath.Join(root, name), mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	var got = Paths(GatherFiles(root, 3, ByModTime, nil))
	var want = []string{
		filepath.Join(root, "i"),
		filepath.Join(root, "h"),
		filepath.Join(root, "e/f/g"),
	}
	if len(got) != len(want) {
		t.Fatalf("GatherFiles() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GatherFiles()[%v] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGatherFilesRandomCap(t *testing.T) {
	var root = t.TempDir()
	writeTree(t, root, []string{"a", "b", "c", "d", "e", "f", "g"})
	var all = map[string]bool{}
	for _, p := range Paths(GatherFiles(root, 0, nil, nil)) {
		all[p] = true
	}

	var got = GatherFiles(root, 4, nil, rand.New(rand.NewSource(1)))
	if len(got) != 4 {
		t.Fatalf("len(GatherFiles()) = %v, want 4", len(got))
	}
	var seen = map[string]bool{}
	for _, c := range got {
		if !all[c.Path] {
			t.Errorf("unexpected path %v", c.Path)
		}
		if seen[c.Path] {
			t.Errorf("duplicate path %v", c.Path)
		}
		seen[c.Path] = true
	}
}
