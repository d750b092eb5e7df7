package log

import (
	stdlog "log"
	"sync"
	"sync/atomic"
	"time"

	"voxelbend.ai/internal/protocol"
)

// JournalPrefix names the journal files: events-YYYY-MM-DD-HH.jsonl.zst.
const JournalPrefix = "events"

type JournalOptions struct {
	QueueSize int
	Logger    *stdlog.Logger
	// Now picks the rotation hour; tests pin it.
	Now func() time.Time
	// OnFileClosed is called with each journal file after it is rotated out
	// or closed, e.g. to mirror it to object storage.
	OnFileClosed func(path string)
}

// EventJournal appends every published event to the hourly journal files. It is
// the source of truth for replay; the SQLite index is derived from the same
// events and may drop under load.
type EventJournal struct {
	w      *JSONLZstdWriter
	ch     chan protocol.Event
	logger *stdlog.Logger

	wg   sync.WaitGroup
	once sync.Once

	// mu orders Publish sends against close(ch).
	mu     sync.RWMutex
	closed bool

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

type JournalStats struct {
	Written       uint64 `json:"written"`
	Dropped       uint64 `json:"dropped"`
	Failed        uint64 `json:"failed"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

func NewEventJournal(dir string, opts JournalOptions) *EventJournal {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 65536
	}
	w := NewJSONLZstdWriter(dir, JournalPrefix)
	if opts.Now != nil {
		w.now = opts.Now
	}
	w.onClose = opts.OnFileClosed
	j := &EventJournal{w: w, ch: make(chan protocol.Event, opts.QueueSize), logger: opts.Logger}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()
	return j
}

// Publish queues ev without blocking.
func (j *EventJournal) Publish(ev protocol.Event) {
	if j == nil {
		return
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.ch <- ev:
	default:
		j.dropped.Add(1)
	}
}

func (j *EventJournal) loop() {
	for ev := range j.ch {
		if err := j.w.Write(ev); err != nil {
			if j.failed.Add(1) == 1 && j.logger != nil {
				j.logger.Printf("warn: journal write failed: %v", err)
			}
			continue
		}
		j.written.Add(1)
		if len(j.ch) == 0 {
			if err := j.w.Flush(); err != nil && j.logger != nil {
				j.logger.Printf("warn: journal flush failed: %v", err)
			}
		}
	}
}

// Close drains the queue and closes the current file.
func (j *EventJournal) Close() error {
	var err error
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.ch)
		j.mu.Unlock()
		j.wg.Wait()
		err = j.w.Close()
	})
	return err
}

func (j *EventJournal) Stats() JournalStats {
	return JournalStats{
		Written:       j.written.Load(),
		Dropped:       j.dropped.Load(),
		Failed:        j.failed.Load(),
		QueueDepth:    len(j.ch),
		QueueCapacity: cap(j.ch),
	}
}
