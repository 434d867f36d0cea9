// Package clipboard polls the system clipboard and reports changes.
package clipboard

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"
	"github.com/xaenox/memo-desk/internal/models"
	"go.uber.org/zap"
)

var ErrInvalidInterval = errors.New("clipboard: invalid poll interval")

type Reader interface {
	ReadAll() (string, error)
}

// SystemReader reads the OS clipboard.
type SystemReader struct{}

func (SystemReader) ReadAll() (string, error) {
	return clipboard.ReadAll()
}

// Supported reports whether a clipboard backend is available on this system.
func Supported() bool {
	return !clipboard.Unsupported
}

// Watcher emits an event each time the clipboard holds new non-blank text.
// Events are dropped, and counted, when the consumer falls behind.
type Watcher struct {
	reader   Reader
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	out     chan models.ClipboardEvent
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped uint64
	last    string
}

func NewWatcher(reader Reader, interval time.Duration, bufferSize int, logger *zap.Logger) (*Watcher, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		reader:   reader,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		out:      make(chan models.ClipboardEvent, bufferSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

func (w *Watcher) C() <-chan models.ClipboardEvent {
	return w.out
}

// Start records the current clipboard content as already seen and begins
// polling.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	if content, err := w.reader.ReadAll(); err == nil {
		w.last = content
	}
	go w.loop()
}

// Stop ends polling and closes C. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.stopped {
		w.stopped = true
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()
	<-w.doneCh
}

func (w *Watcher) Dropped() uint64 {
	return atomic.LoadUint64(&w.dropped)
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	defer close(w.out)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if ev, ok := w.poll(); ok {
				select {
				case w.out <- ev:
				default:
					atomic.AddUint64(&w.dropped, 1)
				}
			}
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) poll() (models.ClipboardEvent, bool) {
	content, err := w.reader.ReadAll()
	if err != nil {
		w.logger.Debug("Failed to read clipboard", zap.Error(err))
		return models.ClipboardEvent{}, false
	}

	w.mu.Lock()
	changed := content != w.last
	w.last = content
	w.mu.Unlock()

	if !changed || strings.TrimSpace(content) == "" {
		return models.ClipboardEvent{}, false
	}
	return models.ClipboardEvent{
		Type:      Classify(content),
		Content:   content,
		Timestamp: w.now().UTC(),
	}, true
}

// Classify reports ClipboardURL for a single absolute http(s) URL and
// ClipboardText otherwise.
func Classify(content string) models.ClipboardType {
	s := strings.TrimSpace(content)
	if strings.ContainsAny(s, " \n\t") {
		return models.ClipboardText
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return models.ClipboardText
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return models.ClipboardURL
	}
	return models.ClipboardText
}
