package dataset

import (
	"io/fs"
	"math/rand"
	"path/filepath"
	"sort"
	"time"
)

type ChunkRef struct {
	Path    string
	ModTime time.Time
}

// SortKey orders chunks when the set is capped. Larger keys are kept first.
type SortKey func(c ChunkRef) int64

func ByModTime(c ChunkRef) int64 {
	return c.ModTime.UnixNano()
}

// GatherFiles returns every regular file below root at any depth.
// When maxChunks > 0 and more files are found, the set is cut to maxChunks:
// by descending key if key != nil, otherwise a uniform random subset drawn from rnd.
// Unreadable entries are skipped; a missing root yields an empty list.
func GatherFiles(root string, maxChunks int, key SortKey, rnd *rand.Rand) []ChunkRef {
	var chunks []ChunkRef
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d == nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		chunks = append(chunks, ChunkRef{
			Path:    path,
			ModTime: info.ModTime(),
		})
		return nil
	})

	if maxChunks > 0 && len(chunks) > maxChunks {
		if key == nil {
			if rnd == nil {
				rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
			}
			rnd.Shuffle(len(chunks), func(i, j int) {
				chunks[i], chunks[j] = chunks[j], chunks[i]
			})
		} else {
			sort.SliceStable(chunks, func(i, j int) bool {
				return key(chunks[i]) > key(chunks[j])
			})
		}
		chunks = chunks[:maxChunks]
	}
	return chunks
}

func Paths(chunks []ChunkRef) []string {
	var result = make([]string, len(chunks))
	for i := range chunks {
		result[i] = chunks[i].Path
	}
	return result
}
