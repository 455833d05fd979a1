package navigation

import "sync"

// Navigator performs a hard navigation: the panel drops whatever it shows and loads path.
type Navigator interface {
	Navigate(path string)
}

// Func adapts a plain function to a Navigator.
type Func func(path string)

func (f Func) Navigate(path string) {
	f(path)
}

// Recorder remembers every navigation. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	paths []string
}

var _ Navigator = (*Recorder)(nil)

func (r *Recorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

// Paths returns a copy of the recorded navigations in order.
func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// Count returns how many times path was navigated to.
func (r *Recorder) Count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.paths {
		if p == path {
			n++
		}
	}
	return n
}

// Last returns the most recent path, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}
