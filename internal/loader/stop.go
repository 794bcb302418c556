package loader

import "sync"

// StopSignal is set once by the trainer and observed by the workers.
type StopSignal struct {
	once sync.Once
	done chan struct{}
}

func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

func (s *StopSignal) Set() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *StopSignal) Done() <-chan struct{} {
	return s.done
}

func (s *StopSignal) IsSet() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
