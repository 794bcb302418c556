package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ChizhovVadim/weiqitrain/internal/domain"
)

// WriteChunk writes examples to path, compressed like StreamLoader expects from the file name.
func WriteChunk(path string, examples []*domain.RawExample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w, err := compressor(path, f)
	if err != nil {
		f.Close()
		return err
	}
	var bw = bufio.NewWriter(w)
	for _, ex := range examples {
		if err = WriteRecord(bw, ex); err != nil {
			break
		}
	}
	if err == nil {
		err = bw.Flush()
	}
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write chunk %v: %w", path, err)
	}
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func compressor(path string, w io.Writer) (io.WriteCloser, error) {
	switch {
	case strings.Contains(path, ".gz"):
		return gzip.NewWriter(w), nil
	case strings.Contains(path, ".zst"):
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return zw, nil
	}
	return nopCloser{w}, nil
}
