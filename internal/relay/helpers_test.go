package relay

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amoylab/grimrelay/internal/common/cnst"
	"github.com/amoylab/grimrelay/internal/session"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

type fakeTransport struct {
	mu          sync.Mutex
	frames      [][]byte
	closed      bool
	failSend    bool
	closeCode   int
	closeReason string
	closeCalls  int
}

func newFakeTransport() *fakeTransport { return &fakeTransport{} }

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return cnst.ErrConnectionClosed
	}
	if f.failSend {
		return cnst.ErrSendQueueFull
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if f.closed {
		return nil
	}
	f.closed = true
	f.closeCode = code
	f.closeReason = reason
	return nil
}

func (f *fakeTransport) received() []gjson.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gjson.Result, len(f.frames))
	for i, fr := range f.frames {
		out[i] = gjson.ParseBytes(fr)
	}
	return out
}

func (f *fakeTransport) kinds() []string {
	var out []string
	for _, m := range f.received() {
		out = append(out, m.Get("type").String())
	}
	return out
}

func (f *fakeTransport) last() gjson.Result {
	msgs := f.received()
	if len(msgs) == 0 {
		return gjson.Result{}
	}
	return msgs[len(msgs)-1]
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testHub struct {
	*Hub
	store *session.MemoryStore
}

func newTestHub(t *testing.T, opts ...Option) *testHub {
	t.Helper()
	store := session.NewMemoryStore(zap.NewNop())
	base := []Option{
		WithLocationPicker(FixedLocation("Shire")),
		WithClock(func() time.Time { return fixedNow }),
		WithSessionIDGenerator(func() string { return "GEN001" }),
	}
	return &testHub{Hub: NewHub(zap.NewNop(), store, append(base, opts...)...), store: store}
}

func (h *testHub) session(t *testing.T, id string) *session.Session {
	t.Helper()
	sess, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return sess
}

func rosterNames(s *session.Session) []string {
	names := make([]string, 0, len(s.Roster))
	for _, p := range s.Roster {
		names = append(names, p.Name)
	}
	return names
}

type recordingObserver struct {
	nopObserver
	mu         sync.Mutex
	broadcasts []string
	rebounds   []string
}

func newRecordingObserver() *recordingObserver { return &recordingObserver{} }

func (o *recordingObserver) Broadcasted(kind string, attempted, delivered int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.broadcasts = append(o.broadcasts, fmt.Sprintf("%s %d/%d", kind, attempted, delivered))
}

func (o *recordingObserver) ConnectionRebound(from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rebounds = append(o.rebounds, from+"->"+to)
}

func (o *recordingObserver) broadcastLog() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.broadcasts...)
}

func (o *recordingObserver) reboundLog() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.rebounds...)
}
