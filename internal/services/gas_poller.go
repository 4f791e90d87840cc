package services

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
)

// DefaultGasInterval is how often the displayed gas estimate is refreshed.
const DefaultGasInterval = 5 * time.Second

// DefaultGasEstimate returns a display-only estimate in [100, 110).
func DefaultGasEstimate() int {
	return 100 + rand.IntN(10)
}

// GasPoller regenerates the gas estimate on every tick until stopped.
type GasPoller struct {
	clock    clock.Clock
	interval time.Duration
	generate func() int
	onUpdate func(int)

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewGasPoller(clk clock.Clock, interval time.Duration, generate func() int, onUpdate func(int)) *GasPoller {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultGasInterval
	}
	if generate == nil {
		generate = DefaultGasEstimate
	}
	return &GasPoller{
		clock:    clk,
		interval: interval,
		generate: generate,
		onUpdate: onUpdate,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start arms the ticker. The first update lands one interval after Start.
func (p *GasPoller) Start() {
	p.startOnce.Do(func() {
		ticker := p.clock.Ticker(p.interval)
		go p.run(ticker)
	})
}

func (p *GasPoller) run(ticker *clock.Ticker) {
	defer close(p.done)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			// a tick racing with Stop must not publish
			select {
			case <-p.stop:
				return
			default:
			}
			if p.onUpdate != nil {
				p.onUpdate(p.generate())
			}
		}
	}
}

// Stop ends polling and waits for the polling goroutine to exit. After Stop
// returns no further update is delivered. Calling Stop more than once is safe.
func (p *GasPoller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		// never started: nothing will close done
		p.startOnce.Do(func() { close(p.done) })
	})
	<-p.done
}
