package snowflake

import (
	"fmt"
	"sync"
	"time"
)

// Generator issues Snowflakes for one (worker, process) pair. A process
// constructs exactly one Generator and shares it by reference; two
// generators with the same pair can issue colliding IDs.
type Generator struct {
	worker  uint64
	process uint64

	mu       sync.Mutex
	lastTime uint64
	sequence uint64
}

// New validates the node identity and returns a ready Generator.
func New(workerID, processID uint8) (*Generator, error) {
	if workerID > MaxWorkerID {
		return nil, fmt.Errorf("snowflake: worker id %d exceeds %d", workerID, MaxWorkerID)
	}
	if processID > MaxProcessID {
		return nil, fmt.Errorf("snowflake: process id %d exceeds %d", processID, MaxProcessID)
	}

	return &Generator{worker: uint64(workerID), process: uint64(processID)}, nil
}

// Next returns a new unique ID. Safe for concurrent use. When more than
// 4096 IDs are requested within one millisecond, Next blocks until the
// next millisecond. A wall clock that moves backwards blocks the same
// way: no ID is issued that would sort before one already handed out.
func (g *Generator) Next() Snowflake {
	g.mu.Lock()

	now := sinceEpoch()
	if now < g.lastTime {
		now = waitUntil(g.lastTime)
	}

	if now == g.lastTime {
		g.sequence++
		if g.sequence > MaxSequence {
			now = waitUntil(g.lastTime + 1)
			g.sequence = 0
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now
	seq := g.sequence

	g.mu.Unlock()

	return Compose(now, g.worker, g.process, seq)
}

func sinceEpoch() uint64 {
	return uint64(time.Now().UnixMilli()) - Epoch
}

func waitUntil(target uint64) uint64 {
	now := sinceEpoch()
	for now < target {
		time.Sleep(100 * time.Microsecond)
		now = sinceEpoch()
	}
	return now
}
