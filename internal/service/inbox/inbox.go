package inbox

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultWindow is how long a sender must stay quiet before the burst is
// released.
const DefaultWindow = 10 * time.Second

var ErrClosed = errors.New("inbox closed")

// Message is one inbound text from a sender.
type Message struct {
	Key    string
	Number string
	Name   string
	Text   string
}

// Batch is a released burst: every buffered text joined with newlines.
type Batch struct {
	Key    string
	Number string
	Name   string
	Text   string
	Count  int
}

// FlushFunc receives released batches. It runs on its own goroutine.
type FlushFunc func(ctx context.Context, batch Batch)

type pending struct {
	timer  *time.Timer
	gen    uint64
	number string
	name   string
}

// Inbox buffers messages per key and restarts the key's quiet-period timer
// on every arrival. When the timer fires the buffer is drained and handed to
// the flush function.
type Inbox struct {
	buffer Buffer
	window time.Duration
	flush  FlushFunc
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pending
	gen     uint64
	closed  bool
	running sync.WaitGroup
}

// New builds an inbox. window <= 0 uses DefaultWindow.
func New(buffer Buffer, window time.Duration, flush FlushFunc, logger *slog.Logger) *Inbox {
	if buffer == nil {
		buffer = NewMemoryBuffer()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{
		buffer:  buffer,
		window:  window,
		flush:   flush,
		logger:  logger.With("component", "inbox", "buffer", buffer.Name()),
		pending: make(map[string]*pending),
	}
}

// Add buffers msg and (re)starts the quiet-period timer for its key.
func (i *Inbox) Add(ctx context.Context, msg Message) error {
	if msg.Key == "" {
		msg.Key = Key(msg.Number, msg.Name)
	}

	i.mu.Lock()
	closed := i.closed
	i.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := i.buffer.Push(ctx, msg.Key, msg.Text); err != nil {
		i.logger.Error("buffer push failed", "key", msg.Key, "error", err)
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrClosed
	}

	if p, ok := i.pending[msg.Key]; ok {
		p.timer.Stop()
		i.logger.Debug("new message, timer restarted", "key", msg.Key)
	}

	i.gen++
	gen := i.gen
	key := msg.Key
	i.pending[key] = &pending{
		timer:  time.AfterFunc(i.window, func() { i.fire(key, gen) }),
		gen:    gen,
		number: msg.Number,
		name:   msg.Name,
	}
	i.logger.Info("message buffered", "key", key, "window", i.window, "length", len([]rune(msg.Text)))
	return nil
}

// Pending lists the keys waiting for their quiet period to end.
func (i *Inbox) Pending() []string {
	i.mu.Lock()
	keys := make([]string, 0, len(i.pending))
	for k := range i.pending {
		keys = append(keys, k)
	}
	i.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Close stops every timer and waits for running flushes. Buffered messages
// stay in the buffer.
func (i *Inbox) Close() error {
	i.mu.Lock()
	i.closed = true
	for key, p := range i.pending {
		p.timer.Stop()
		delete(i.pending, key)
	}
	i.mu.Unlock()

	i.running.Wait()
	return nil
}

func (i *Inbox) fire(key string, gen uint64) {
	i.mu.Lock()
	p, ok := i.pending[key]
	// a newer arrival owns the key
	if !ok || p.gen != gen || i.closed {
		i.mu.Unlock()
		return
	}
	delete(i.pending, key)
	i.running.Add(1)
	i.mu.Unlock()

	defer i.running.Done()
	i.release(context.Background(), key, p.number, p.name)
}

func (i *Inbox) release(ctx context.Context, key, number, name string) {
	messages, err := i.buffer.Drain(ctx, key)
	if err != nil {
		i.logger.Error("buffer drain failed", "key", key, "error", err)
		return
	}
	if len(messages) == 0 {
		i.logger.Warn("no buffered messages", "key", key)
		return
	}

	batch := Batch{
		Key:    key,
		Number: number,
		Name:   name,
		Text:   strings.Join(messages, "\n"),
		Count:  len(messages),
	}
	i.logger.Info("releasing batch", "key", key, "messages", batch.Count, "length", len([]rune(batch.Text)))

	if i.flush != nil {
		i.flush(ctx, batch)
	}
}
