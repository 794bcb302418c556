package dataset

import (
	"path/filepath"
	"testing"
)

func TestWriteChunk(t *testing.T) {
	var dir = t.TempDir()
	var examples = randomExamples(5, 4, 7, 2)
	for _, name := range []string{"plain.txt", "packed.txt.gz", "packed.txt.zst"} {
		t.Run(name, func(t *testing.T) {
			var path = filepath.Join(dir, name)
			if err := WriteChunk(path, examples); err != nil {
				t.Fatal(err)
			}
			var sl StreamLoader
			var s = sl.Load(path)
			if s == nil {
				t.Fatalf("Load(%v) = nil", path)
			}
			var reader TextRecordReader
			for i, want := range examples {
				got, err := reader.ReadRecord(s, false)
				if err != nil {
					t.Fatalf("record %v: %v", i, err)
				}
				if got.BoardSize != want.BoardSize || got.Result != want.Result || got.Ownership[3] != want.Ownership[3] {
					t.Errorf("record %v differs", i)
				}
			}
		})
	}
	if err := WriteChunk(filepath.Join(dir, "missing", "x.txt"), examples); err == nil {
		t.Errorf("WriteChunk() into a missing directory succeeded")
	}
}
