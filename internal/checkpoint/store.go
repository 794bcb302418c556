package checkpoint

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	statusFileName = "last_status.bin"
	weightsDirName = "weights"
	swaDirName     = "swa"
	infoFileName   = "info.txt"
	logFileName    = "training.log"
)

type Exporter interface {
	Export(w io.Writer) error
}

// Store is the layout of one training directory.
type Store struct {
	Dir string
}

// Open creates the store directory with its weights and swa subdirectories.
func Open(dir string) (*Store, error) {
	for _, d := range []string{dir, filepath.Join(dir, weightsDirName), filepath.Join(dir, swaDirName)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) StatusPath() string {
	return filepath.Join(s.Dir, statusFileName)
}

func (s *Store) WeightsPath(steps int) string {
	return filepath.Join(s.Dir, weightsDirName, fmt.Sprintf("s%d.bin.txt", steps))
}

func (s *Store) SWAPath(steps int) string {
	return filepath.Join(s.Dir, swaDirName, fmt.Sprintf("swa-s%d.bin.txt", steps))
}

// LoadStatus decodes the last checkpoint into v.
// It reports false without error when there is no checkpoint yet.
func (s *Store) LoadStatus(v any) (bool, error) {
	f, err := os.Open(s.StatusPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return false, err
	}
	defer zr.Close()

	if err := gob.NewDecoder(zr).Decode(v); err != nil {
		return false, fmt.Errorf("decode %v: %w", s.StatusPath(), err)
	}
	return true, nil
}

// Commit exports both weight files for steps, then replaces the checkpoint.
// A failure leaves the previous checkpoint in place.
func (s *Store) Commit(steps int, status any, model, swa Exporter) error {
	if err := writeAtomic(s.WeightsPath(steps), model.Export); err != nil {
		return err
	}
	if err := writeAtomic(s.SWAPath(steps), swa.Export); err != nil {
		return err
	}
	return writeAtomic(s.StatusPath(), func(w io.Writer) error {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := gob.NewEncoder(zw).Encode(status); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	})
}

func (s *Store) WriteInfo(text string) error {
	return writeAtomic(filepath.Join(s.Dir, infoFileName), func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

// AppendLog appends one timestamped entry to training.log.
func (s *Store) AppendLog(text string) error {
	f, err := os.OpenFile(filepath.Join(s.Dir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "%v\n%v\n", time.Now().Format(time.DateTime), text)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// writeAtomic writes path.tmp and renames it over path.
func writeAtomic(path string, write func(w io.Writer) error) error {
	var tmp = path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	var bw = bufio.NewWriter(f)
	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %v: %w", path, err)
	}
	return os.Rename(tmp, path)
}
