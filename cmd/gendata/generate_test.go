package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChizhovVadim/weiqitrain/internal/dataset"
)

func TestGenerateChunks(t *testing.T) {
	tests := []struct {
		compression string
		ext         string
	}{
		{"none", ".txt"},
		{"gz", ".txt.gz"},
		{"zst", ".txt.zst"},
	}
	for _, tt := range tests {
		t.Run(tt.compression, func(t *testing.T) {
			var dir = t.TempDir()
			var settings = Settings{
				OutputFolder:    dir,
				Chunks:          3,
				RecordsPerChunk: 5,
				BoardSizes:      []int{9, 7},
				FeaturePlanes:   2,
				Compression:     tt.compression,
				Threads:         2,
				Seed:            1,
			}
			if err := generateChunks(context.Background(), settings); err != nil {
				t.Fatal(err)
			}
			var chunks = dataset.GatherFiles(dir, 0, nil, nil)
			if len(chunks) != 3 {
				t.Fatalf("got %v chunks, want 3", len(chunks))
			}
			var sl dataset.StreamLoader
			for _, c := range chunks {
				if filepath.Ext(c.Path) != filepath.Ext(tt.ext) {
					t.Errorf("unexpected file %v", c.Path)
				}
				var s = sl.Load(c.Path)
				if s == nil {
					t.Fatalf("could not load %v", c.Path)
				}
				var records int
				for {
					_, err := dataset.TextRecordReader{}.ReadRecord(s, false)
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						t.Fatal(err)
					}
					records++
				}
				if records != 5 {
					t.Errorf("%v: %v records, want 5", c.Path, records)
				}
			}
		})
	}
}

func TestGenerateChunksRejectsCompression(t *testing.T) {
	var settings = Settings{
		OutputFolder: filepath.Join(t.TempDir(), "out"),
		Chunks:       1,
		BoardSizes:   []int{9},
		Compression:  "bz2",
	}
	if err := generateChunks(context.Background(), settings); err == nil {
		t.Errorf("generateChunks() accepted bz2")
	}
	if _, err := os.Stat(settings.OutputFolder); err == nil {
		t.Errorf("output folder created for a rejected run")
	}
}
