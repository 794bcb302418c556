package dataset

import (
	"errors"
	"io"
	"math/rand"
	"sync"

	"github.com/ChizhovVadim/weiqitrain/internal/domain"
)

// Result is either one accepted example or the end of the stream.
// Records counts the well-formed records read by the call, down-sampled ones included.
type Result struct {
	Example     domain.TrainingExample
	EndOfStream bool
	Records     int
}

// StreamParser down-samples records and applies a random board symmetry.
// It is safe for concurrent use; each stream must only be read by one caller at a time.
type StreamParser struct {
	// DownSampleRate R > 1 keeps a record with probability 1/R.
	DownSampleRate int
	Records        RecordReader

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewStreamParser(downSampleRate int, records RecordReader, rnd *rand.Rand) *StreamParser {
	if records == nil {
		records = TextRecordReader{}
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	return &StreamParser{
		DownSampleRate: downSampleRate,
		Records:        records,
		rnd:            rnd,
	}
}

// Parse returns the next accepted example of s.
// A nil stream counts as exhausted. A malformed record is returned as an error.
func (p *StreamParser) Parse(s *Stream) (Result, error) {
	if s == nil {
		return Result{EndOfStream: true}, nil
	}
	var records int
	for {
		var skip = p.skipThisTime()
		var raw, err = p.Records.ReadRecord(s, skip)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Result{EndOfStream: true, Records: records}, nil
			}
			return Result{}, err
		}
		records++
		if skip {
			continue
		}
		return Result{Example: ApplySymmetry(raw, p.intn(NumSymmetries)), Records: records}, nil
	}
}

func (p *StreamParser) skipThisTime() bool {
	if p.DownSampleRate <= 1 {
		return false
	}
	return p.intn(p.DownSampleRate) != 0
}

func (p *StreamParser) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Intn(n)
}
