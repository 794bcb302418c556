package dataset

import (
	"bufio"
	"bytes"
	"io"
	"log"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Stream is an in-memory, rewindable view of one data file.
type Stream struct {
	Name  string
	lines *bufio.Reader
}

func NewStream(name string, data []byte) *Stream {
	return &Stream{
		Name:  name,
		lines: bufio.NewReader(bytes.NewReader(data)),
	}
}

// ReadLine returns the next line without the trailing newline.
// io.EOF is returned only when no bytes remain.
func (s *Stream) ReadLine() (string, error) {
	var line, err = s.lines.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

type StreamLoader struct {
	Logger *log.Logger
}

// Load reads the whole file into memory, decompressing .gz and .zst files.
// It returns nil when the file is missing or cannot be read.
func (sl *StreamLoader) Load(path string) *Stream {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}
	data, err := readAll(path)
	if err != nil {
		sl.logger().Println("could not open the file",
			"path", path,
			"err", err)
		return nil
	}
	return NewStream(path, data)
}

func (sl *StreamLoader) logger() *log.Logger {
	if sl.Logger != nil {
		return sl.Logger
	}
	return log.Default()
}

func readAll(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch {
	case strings.Contains(path, ".gz"):
		zr, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case strings.Contains(path, ".zst"):
		zr, err := zstd.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return io.ReadAll(file)
	}
}
