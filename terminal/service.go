package terminal

import (
	"sync"
)

const inputQueueSize = 64

// InputService puts a Terminal in raw mode and forwards its input bytes
// Key decoding is left to the consumer
type InputService struct {
	term Terminal
	in   chan []byte

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	startErr  error

	stop chan struct{}
	done chan struct{}
}

func NewInputService(t Terminal) *InputService {
	return &InputService{
		term: t,
		in:   make(chan []byte, inputQueueSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start initializes the terminal and begins polling; later calls return the first result
func (s *InputService) Start() error {
	s.startOnce.Do(func() {
		if s.startErr = s.term.Init(); s.startErr != nil {
			return
		}
		s.started = true
		go s.poll()
	})
	return s.startErr
}

func (s *InputService) poll() {
	defer close(s.done)
	defer close(s.in)
	defer crashGuard("input poll")

	for {
		chunk, err := s.term.Read(s.stop)
		if err != nil || chunk == nil {
			return
		}
		select {
		case s.in <- chunk:
		case <-s.stop:
			return
		}
	}
}

// Stop ends polling and restores the terminal; safe to call repeatedly
// Must not race with Start
func (s *InputService) Stop() error {
	s.stopOnce.Do(func() {
		if !s.started {
			return
		}
		close(s.stop)
		<-s.done
		s.term.Fini()
	})
	return nil
}

func (s *InputService) Terminal() Terminal { return s.term }

// Input yields raw chunks and is closed once polling ends
func (s *InputService) Input() <-chan []byte { return s.in }
