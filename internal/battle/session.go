package battle

import "sync"

// Session is a handle on a scheduled battle.
type Session struct {
	ID string

	retreat     chan struct{}
	retreatOnce sync.Once

	done       chan struct{}
	resultOnce sync.Once
	result     Result
}

func newSession(id string) *Session {
	return &Session{
		ID:      id,
		retreat: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Retreat asks the battle to stop at the next tick boundary. The battle is
// then reported as a defeat. Calling it more than once, or after the
// battle ended, has no effect.
func (s *Session) Retreat() {
	s.retreatOnce.Do(func() { close(s.retreat) })
}

// Done is closed once the result is available.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the outcome once Done is closed.
func (s *Session) Result() (Result, bool) {
	select {
	case <-s.done:
		return s.result, true
	default:
		return Result{}, false
	}
}

func (s *Session) finish(res Result, onDone func(Result)) {
	s.resultOnce.Do(func() {
		s.result = res
		close(s.done)
		if onDone != nil {
			onDone(res)
		}
	})
}
