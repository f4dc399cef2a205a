package ranking

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// auditEntry is one recorded scoring observation.
type auditEntry struct {
	Time  time.Time `json:"time"`
	Query string    `json:"query"`
	URL   string    `json:"url"`
	Mode  Mode      `json:"mode"`
	Score float64   `json:"score"`
}

// Recorder appends every (query, item, score) triple to an audit log.
// It is an explicit handle passed into the engine, scoped to one run,
// and always off the critical path: writes happen on a background
// goroutine and are dropped rather than ever blocking a query.
type Recorder struct {
	file    *os.File
	entries chan auditEntry
	done    chan struct{}
	logger  *zap.Logger

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewRecorder opens (or creates) the audit log at path in append mode.
func NewRecorder(path string, logger *zap.Logger) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		file:    f,
		entries: make(chan auditEntry, 1024),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go r.writeLoop()
	return r, nil
}

// Record enqueues one observation. When the buffer is full the entry is
// dropped, and a Record racing Close is dropped too; the audit log is
// best-effort.
func (r *Recorder) Record(query, url string, mode Mode, score float64) {
	e := auditEntry{
		Time:  time.Now().UTC(),
		Query: query,
		URL:   url,
		Mode:  mode,
		Score: score,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.entries <- e:
	default:
		r.logger.Warn("audit recorder buffer full, dropping entry")
	}
}

// Close flushes buffered entries and closes the log file. Records
// arriving after Close are silently dropped.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.entries)
		<-r.done
	})
	return r.file.Close()
}

func (r *Recorder) writeLoop() {
	defer close(r.done)
	w := bufio.NewWriter(r.file)
	defer w.Flush()

	for e := range r.entries {
		line, err := json.Marshal(e)
		if err != nil {
			continue
		}
		w.Write(line)
		w.WriteByte('\n')
	}
}
