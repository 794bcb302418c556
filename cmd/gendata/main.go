package main

import (
	"context"
	"flag"
	"log"
	"runtime"

	"github.com/ChizhovVadim/weiqitrain/internal/config"
)

type Settings struct {
	OutputFolder    string
	Chunks          int
	RecordsPerChunk int
	BoardSizes      []int
	FeaturePlanes   int
	Compression     string
	Threads         int
	Seed            int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var settings = Settings{
		OutputFolder:    "~/weiqi/chunks",
		Chunks:          16,
		RecordsPerChunk: 1000,
		BoardSizes:      []int{9, 13, 19},
		FeaturePlanes:   32,
		Compression:     "gz",
		Threads:         max(1, runtime.NumCPU()/2),
		Seed:            1,
	}

	flag.StringVar(&settings.OutputFolder, "output", settings.OutputFolder, "Path to output folder")
	flag.IntVar(&settings.Chunks, "chunks", settings.Chunks, "Number of chunk files")
	flag.IntVar(&settings.RecordsPerChunk, "records", settings.RecordsPerChunk, "Number of records per chunk")
	flag.IntVar(&settings.FeaturePlanes, "planes", settings.FeaturePlanes, "Number of feature planes per record")
	flag.StringVar(&settings.Compression, "compression", settings.Compression, "Chunk compression: none, gz or zst")
	flag.IntVar(&settings.Threads, "threads", settings.Threads, "Number of threads")
	flag.Int64Var(&settings.Seed, "seed", settings.Seed, "Random seed")
	flag.Parse()

	settings.OutputFolder = config.MapPath(settings.OutputFolder)
	log.Printf("%+v", settings)

	var err = generateChunks(context.Background(), settings)
	if err != nil {
		log.Println(err)
	}
}
