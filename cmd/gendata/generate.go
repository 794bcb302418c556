package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/ChizhovVadim/weiqitrain/internal/dataset"
	"github.com/ChizhovVadim/weiqitrain/internal/domain"

	"golang.org/x/sync/errgroup"
)

// generateChunks writes synthetic self-play chunks for smoke runs of the trainer.
func generateChunks(ctx context.Context, settings Settings) error {
	log.Println("generate started")
	defer log.Println("generate finished")

	ext, err := chunkExt(settings.Compression)
	if err != nil {
		return err
	}
	if len(settings.BoardSizes) == 0 {
		return fmt.Errorf("at least one board size is expected")
	}
	if err := os.MkdirAll(settings.OutputFolder, 0o755); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	var indexes = make(chan int)

	g.Go(func() error {
		defer close(indexes)
		for i := 0; i < settings.Chunks; i++ {
			select {
			case indexes <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < max(1, settings.Threads); i++ {
		g.Go(func() error {
			for index := range indexes {
				var path = filepath.Join(settings.OutputFolder, fmt.Sprintf("chunk-%05d.txt%v", index, ext))
				if err := writeChunk(path, index, &settings); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func writeChunk(path string, index int, settings *Settings) error {
	var rnd = rand.New(rand.NewSource(settings.Seed + int64(index)))
	var boardSize = settings.BoardSizes[index%len(settings.BoardSizes)]
	var examples = make([]*domain.RawExample, settings.RecordsPerChunk)
	for i := range examples {
		examples[i] = dataset.RandomExample(rnd, boardSize, settings.FeaturePlanes)
	}
	if err := dataset.WriteChunk(path, examples); err != nil {
		return err
	}
	log.Println("chunk saved",
		"path", path,
		"boardSize", boardSize,
		"records", len(examples))
	return nil
}

func chunkExt(compression string) (string, error) {
	switch compression {
	case "", "none":
		return "", nil
	case "gz":
		return ".gz", nil
	case "zst":
		return ".zst", nil
	}
	return "", fmt.Errorf("unsupported compression %q", compression)
}
