package orch

import (
	"fmt"
	"time"

	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
)

type call struct {
	op   string
	conn core.Connection
	opts domain.MediaOptions
}

type fakeTransport struct {
	sink     core.EventSink
	calls    []call
	sent     [][]byte
	joinErr  error
	sendErr  error
	released bool

	// len(sent) when the sink was last removed, -1 while it is installed
	sentAtUnhook int
}

func (f *fakeTransport) record(op string, conn core.Connection, opts domain.MediaOptions) {
	f.calls = append(f.calls, call{op: op, conn: conn, opts: opts})
}

func (f *fakeTransport) SetEventSink(s core.EventSink) {
	f.sink = s
	f.sentAtUnhook = -1
	if s == nil {
		f.sentAtUnhook = len(f.sent)
	}
}

func (f *fakeTransport) Join(token string, conn core.Connection, opts domain.MediaOptions) error {
	f.record("join", conn, opts)
	return f.joinErr
}

func (f *fakeTransport) JoinSecondary(token string, conn core.Connection, opts domain.MediaOptions) error {
	f.record("join_secondary", conn, opts)
	return f.joinErr
}

func (f *fakeTransport) Leave() error {
	f.record("leave", core.Connection{}, domain.MediaOptions{})
	return nil
}

func (f *fakeTransport) LeaveSecondary(conn core.Connection) error {
	f.record("leave_secondary", conn, domain.MediaOptions{})
	return nil
}

func (f *fakeTransport) CreateReliableStream(core.StreamConfig) (int, error) {
	f.record("create_stream", core.Connection{}, domain.MediaOptions{})
	return 7, nil
}

func (f *fakeTransport) SendOnStream(id int, data []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Release() { f.released = true }

func (f *fakeTransport) ops() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

type fakeView struct {
	changes  []core.SubConnectionView
	errs     []error
	joined   []core.RemoteView
	left     []core.RemoteView
	moved    [][2]float64
	hidden   int
	chats    []core.ChatEntry
	triggers []string
}

func (v *fakeView) SubConnectionChanged(s core.SubConnectionView, err error) {
	v.changes = append(v.changes, s)
	if err != nil {
		v.errs = append(v.errs, err)
	}
}
func (v *fakeView) RemoteJoined(r core.RemoteView) { v.joined = append(v.joined, r) }
func (v *fakeView) RemoteLeft(r core.RemoteView)   { v.left = append(v.left, r) }
func (v *fakeView) CursorMoved(x, y float64)       { v.moved = append(v.moved, [2]float64{x, y}) }
func (v *fakeView) CursorHidden()                  { v.hidden++ }
func (v *fakeView) ChatAppended(e core.ChatEntry)  { v.chats = append(v.chats, e) }
func (v *fakeView) Triggered(name string)          { v.triggers = append(v.triggers, name) }

type fixture struct {
	now  time.Time
	tr   *fakeTransport
	view *fakeView
	o    *Orchestrator
	made int
}

func newFixture(role domain.Role, autoJoin ...domain.Purpose) *fixture {
	rc, err := domain.NewRoleConfig(role, domain.DefaultUIDTable())
	if err != nil {
		panic(fmt.Sprintf("role config: %v", err))
	}
	rc.AutoJoin = autoJoin
	f := &fixture{
		now:  time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		tr:   &fakeTransport{},
		view: &fakeView{},
	}
	factory := func(core.EngineConfig) (core.Transport, error) {
		f.made++
		return f.tr, nil
	}
	f.o = New(rc, factory, f.view).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) conn(uid domain.UID) core.Connection {
	return core.Connection{Channel: "room1", LocalUID: uid}
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
	f.o.Tick(f.now)
}
