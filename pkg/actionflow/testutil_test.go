package actionflow

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
)

// recordingHost captures everything the pipeline hands to the host.
type recordingHost struct {
	mu        sync.Mutex
	forwarded []event.Event
	emitted   []event.Event
	// order holds "forward:TYPE:id" / "emit:TYPE:id" entries in arrival order.
	order []string
}

func (h *recordingHost) Forward(evt event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forwarded = append(h.forwarded, evt)
	h.order = append(h.order, "forward:"+label(evt))
}

func (h *recordingHost) Emit(evt event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emitted = append(h.emitted, evt)
	h.order = append(h.order, "emit:"+label(evt))
}

func (h *recordingHost) Forwarded() []event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]event.Event(nil), h.forwarded...)
}

func (h *recordingHost) Emitted() []event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]event.Event(nil), h.emitted...)
}

func (h *recordingHost) Order() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.order...)
}

// ev builds a test event carrying an id field.
func ev(eventType string, id int) event.Event {
	return event.NewAny(eventType, event.Fields{"id": id})
}

// derived builds an event caused by parent, carrying the parent's id.
func derived(parent event.Event, eventType string) event.Event {
	return event.NewAnyFromParent(parent, eventType, event.Fields{"id": idOf(parent)})
}

func idOf(evt event.Event) any {
	if f, ok := evt.Data().(event.Fields); ok {
		return f["id"]
	}
	return nil
}

func label(evt event.Event) string {
	b, _ := json.Marshal(idOf(evt))
	return evt.Type() + ":" + string(b)
}

func labels(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = label(e)
	}
	return out
}

// newTestPipeline builds a pipeline with a recording host and a discarding
// logger, and closes it when the test ends.
func newTestPipeline(t *testing.T, logics []Logic, opts ...Option) (*Pipeline, *recordingHost) {
	t.Helper()
	host := &recordingHost{}
	opts = append([]Option{WithLogger(newTestLogger())}, opts...)
	p, err := New(logics, host, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Close(context.Background())
	})
	return p, host
}

// closePipeline waits for every occurrence to finish and every result to
// reach the host.
func closePipeline(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
}

// resolvers queues stage resolutions so a test can fire them later, in an
// order it controls.
type resolvers chan func()

func newResolvers() resolvers {
	return make(resolvers, 64)
}

// next fires the oldest queued resolution.
func (r resolvers) next(t *testing.T) {
	t.Helper()
	select {
	case fn := <-r:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("no pending resolution")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// testLogHandler captures log records as JSON lines. Safe for concurrent use.
type testLogHandler struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	attrs []slog.Attr
	root  *testLogHandler
}

func newTestLogHandler() *testLogHandler {
	h := &testLogHandler{}
	h.root = h
	return h
}

func (h *testLogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	h.root.mu.Lock()
	defer h.root.mu.Unlock()
	return json.NewEncoder(&h.root.buf).Encode(data)
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testLogHandler{
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
		root:  h.root,
	}
}

func (h *testLogHandler) WithGroup(string) slog.Handler { return h }

func (h *testLogHandler) records() []map[string]any {
	h.root.mu.Lock()
	defer h.root.mu.Unlock()

	var out []map[string]any
	for _, line := range bytes.Split(h.root.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (h *testLogHandler) find(msg string) []map[string]any {
	var out []map[string]any
	for _, r := range h.records() {
		if r["msg"] == msg {
			out = append(out, r)
		}
	}
	return out
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

func slogWith(h *testLogHandler) *slog.Logger {
	return slog.New(h)
}
