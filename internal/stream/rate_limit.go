package stream

import "sync"

// streamLimiter caps open streams per client IP and across all clients.
type streamLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	total    int
	perIP    int
	maxTotal int
}

func newStreamLimiter(perIP, maxTotal int) *streamLimiter {
	return &streamLimiter{
		open:     make(map[string]int),
		perIP:    perIP,
		maxTotal: maxTotal,
	}
}

// acquire takes a slot for ip. The returned release func must be called
// exactly once when the stream ends; ok is false when either cap is reached.
func (l *streamLimiter) acquire(ip string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal || l.open[ip] >= l.perIP {
		return nil, false
	}
	l.open[ip]++
	l.total++

	var once sync.Once
	return func() { once.Do(func() { l.release(ip) }) }, true
}

func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total--
	if l.open[ip]--; l.open[ip] <= 0 {
		delete(l.open, ip)
	}
}

func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[ip]
}
