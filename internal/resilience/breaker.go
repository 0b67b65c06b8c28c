package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned without calling out while the breaker is open.
var ErrBreakerOpen = eris.New("resilience: circuit open")

// Breaker opens after Threshold consecutive failures and lets a single probe
// through once Cooldown has elapsed. A successful probe closes it again.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 10
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && b.now().Sub(b.openedAt) < b.cooldown
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cooldown || b.probing {
		return ErrBreakerOpen
	}
	b.probing = true
	return nil
}

// record counts only transient failures; a provider saying "no" is not an outage.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if err == nil || !IsTransient(err) {
		if b.failures >= b.threshold {
			zap.L().Info("resilience: circuit closed", zap.String("breaker", b.name))
		}
		b.failures = 0
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		if b.failures == b.threshold {
			zap.L().Warn("resilience: circuit opened",
				zap.String("breaker", b.name),
				zap.Int("failures", b.failures),
			)
		}
		b.openedAt = b.now()
	}
}
