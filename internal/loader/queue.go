package loader

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChizhovVadim/weiqitrain/internal/batch"
	"github.com/ChizhovVadim/weiqitrain/internal/dataset"
	"github.com/ChizhovVadim/weiqitrain/internal/domain"

	"golang.org/x/sync/errgroup"
)

var (
	ErrEndOfIteration = errors.New("loader: end of iteration")
	ErrNoFiles        = errors.New("loader: no files")
	ErrNoExamples     = errors.New("loader: a full pass over the files found no usable records")
)

const defaultStreamsPerWorker = 4

type StreamOpener interface {
	Load(path string) *dataset.Stream
}

type ExampleParser interface {
	Parse(s *dataset.Stream) (dataset.Result, error)
}

type BatchMaker interface {
	// Check rejects an example that Generate cannot place.
	Check(ex *domain.TrainingExample) error
	Generate(examples []domain.TrainingExample) *batch.MacroBatch
}

type Options struct {
	Files   []string
	Loader  StreamOpener
	Parser  ExampleParser
	Batcher BatchMaker
	Workers int
	// BufferSize is counted in examples.
	BufferSize       int
	BatchSize        int
	StreamsPerWorker int
	Stop             *StopSignal
	Seed             int64
	Logger           *log.Logger
}

// Queue yields macro-batches produced by a pool of workers.
type Queue struct {
	out    chan *batch.MacroBatch
	done   chan struct{}
	err    error
	stop   *StopSignal
	cancel context.CancelFunc
	logger *log.Logger

	files   int
	usable  atomic.Bool
	mu      sync.Mutex
	retired map[string]struct{}
}

func New(ctx context.Context, opts Options) (*Queue, error) {
	if len(opts.Files) == 0 {
		return nil, ErrNoFiles
	}
	if opts.BatchSize <= 0 {
		return nil, errors.New("loader: batch size must be positive")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.StreamsPerWorker <= 0 {
		opts.StreamsPerWorker = defaultStreamsPerWorker
	}
	if opts.Stop == nil {
		opts.Stop = NewStopSignal()
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	var logger = opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	var q = &Queue{
		out:     make(chan *batch.MacroBatch, max(1, opts.BufferSize/opts.BatchSize)),
		done:    make(chan struct{}),
		stop:    opts.Stop,
		cancel:  cancel,
		logger:  logger,
		files:   countDistinct(opts.Files),
		retired: make(map[string]struct{}),
	}

	g, ctx := errgroup.WithContext(ctx)
	var paths = make(chan string, opts.Workers*opts.StreamsPerWorker)

	g.Go(func() error {
		defer close(paths)
		return q.feedFiles(ctx, opts.Files, rand.New(rand.NewSource(opts.Seed)), paths)
	})

	for i := 0; i < opts.Workers; i++ {
		var rnd = rand.New(rand.NewSource(opts.Seed + int64(i) + 1))
		g.Go(func() error {
			return q.work(ctx, &opts, rnd, paths)
		})
	}

	logger.Println("loader started",
		"files", len(opts.Files),
		"workers", opts.Workers,
		"capacity", cap(q.out))

	go func() {
		var err = g.Wait()
		if errors.Is(err, context.Canceled) && q.stop.IsSet() {
			err = nil
		}
		q.err = err
		close(q.out)
		close(q.done)
		logger.Println("loader finished", "err", err)
	}()

	return q, nil
}

// Pull blocks until a batch is ready.
// When the pool has ended it returns the pool error or ErrEndOfIteration.
func (q *Queue) Pull(ctx context.Context) (*batch.MacroBatch, error) {
	select {
	case b, ok := <-q.out:
		if !ok {
			if q.err != nil {
				return nil, q.err
			}
			return nil, ErrEndOfIteration
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the workers and waits for them.
func (q *Queue) Close() error {
	q.stop.Set()
	q.cancel()
	<-q.done
	if errors.Is(q.err, context.Canceled) {
		return nil
	}
	return q.err
}

// feedFiles cycles over the files, reshuffled on every pass.
func (q *Queue) feedFiles(
	ctx context.Context,
	files []string,
	rnd *rand.Rand,
	paths chan<- string,
) error {
	var order = append([]string(nil), files...)
	for {
		rnd.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, path := range order {
			select {
			case paths <- path:
			case <-q.stop.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (q *Queue) work(
	ctx context.Context,
	opts *Options,
	rnd *rand.Rand,
	paths <-chan string,
) error {
	// records counts the well-formed records drawn from each open stream
	var streams []*dataset.Stream
	var records []int
	var pending = make([]domain.TrainingExample, 0, opts.BatchSize)

	for {
		for len(streams) < opts.StreamsPerWorker {
			var path string
			var ok bool
			select {
			case path, ok = <-paths:
			case <-ctx.Done():
				return ctx.Err()
			}
			if !ok {
				break
			}
			var s = opts.Loader.Load(path)
			if s == nil {
				if err := q.retire(path, false); err != nil {
					return err
				}
				continue
			}
			streams = append(streams, s)
			records = append(records, 0)
		}
		if len(streams) == 0 {
			return nil
		}

		var i = rnd.Intn(len(streams))
		res, err := opts.Parser.Parse(streams[i])
		if err == nil && !res.EndOfStream {
			err = opts.Batcher.Check(&res.Example)
		}
		records[i] += res.Records
		if err != nil || res.EndOfStream {
			if err != nil {
				q.logger.Println("skip stream",
					"name", streams[i].Name,
					"err", err)
			}
			var name = streams[i].Name
			var usable = err == nil && records[i] > 0
			var last = len(streams) - 1
			streams[i], records[i] = streams[last], records[last]
			streams, records = streams[:last], records[:last]
			if err := q.retire(name, usable); err != nil {
				return err
			}
			if q.stop.IsSet() {
				return nil
			}
			continue
		}

		pending = append(pending, res.Example)
		if len(pending) < opts.BatchSize {
			continue
		}
		var b = opts.Batcher.Generate(pending)
		pending = make([]domain.TrainingExample, 0, opts.BatchSize)
		select {
		case q.out <- b:
		case <-q.stop.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// retire records a finished file. A file is usable when its stream ended
// cleanly after at least one well-formed record; down-sampled records count,
// a later pass draws them again. Once every file was finished and none was
// usable the pool fails.
func (q *Queue) retire(path string, usable bool) error {
	if usable {
		q.usable.Store(true)
	}
	if q.usable.Load() {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retired[path] = struct{}{}
	if len(q.retired) >= q.files && !q.usable.Load() {
		return ErrNoExamples
	}
	return nil
}

func countDistinct(files []string) int {
	var seen = make(map[string]struct{}, len(files))
	for _, f := range files {
		seen[f] = struct{}{}
	}
	return len(seen)
}
