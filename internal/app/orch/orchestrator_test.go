package orch

import (
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Tutor/internal/app/cursor"
	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/dkeye/Tutor/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinedStudent(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(domain.RoleStudent)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	require.NoError(t, f.o.JoinPrimary())
	f.o.OnJoined(f.conn(123), 40*time.Millisecond)
	require.Equal(t, domain.StateJoined, f.o.State(domain.PurposePrimary))
	return f
}

func TestInitializeJoinPrimaryAck(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	assert.Same(t, f.o, f.tr.sink)

	require.NoError(t, f.o.JoinPrimary())
	assert.Equal(t, domain.StateJoining, f.o.State(domain.PurposePrimary))
	require.Len(t, f.tr.calls, 1)
	assert.Equal(t, "join", f.tr.calls[0].op)
	assert.Equal(t, f.conn(123), f.tr.calls[0].conn)
	assert.Equal(t, domain.PurposeOptions(domain.PurposePrimary), f.tr.calls[0].opts)

	f.tr.sink.OnJoined(f.conn(123), 30*time.Millisecond)
	f.advance(16 * time.Millisecond)
	assert.Equal(t, domain.StateJoined, f.o.State(domain.PurposePrimary))
	assert.Equal(t, "app1", f.o.Identity())
	assert.Equal(t, domain.ChannelName("room1"), f.o.Channel())
}

func TestInitializeRejectsEmptyFields(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleTeacher)
	err := f.o.Initialize("app1", "", "room1")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Zero(t, f.made)
	assert.False(t, f.o.Initialized())

	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	assert.ErrorIs(t, f.o.Initialize("app1", "tok1", "room1"), domain.ErrAlreadyInitialized)
}

func TestJoinBeforeInitialize(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	assert.ErrorIs(t, f.o.JoinPrimary(), domain.ErrNotInitialized)
	assert.ErrorIs(t, f.o.JoinScreenShare(), domain.ErrNotInitialized)
}

func TestLeaveAllWithoutJoinIssuesNoCalls(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	f.o.LeaveAll()
	f.o.LeaveAll()

	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	f.o.LeaveAll()
	assert.Empty(t, f.tr.calls)
	assert.Same(t, f.o, f.tr.sink)
}

func TestNegativeAckRevertsToIdle(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	require.NoError(t, f.o.JoinPrimary())
	f.o.OnJoinFailed(f.conn(123), 17)

	assert.Equal(t, domain.StateIdle, f.o.State(domain.PurposePrimary))
	require.Len(t, f.view.errs, 1)
	var jerr *domain.JoinFailedError
	require.True(t, errors.As(f.view.errs[0], &jerr))
	assert.Equal(t, 17, jerr.Code)

	require.NoError(t, f.o.JoinPrimary())
	assert.Equal(t, domain.StateJoining, f.o.State(domain.PurposePrimary))
}

func TestSynchronousRejectionReturnsJoinFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	f.tr.joinErr = &core.CodeError{Op: "join", Code: -2}

	err := f.o.JoinPrimary()
	var jerr *domain.JoinFailedError
	require.True(t, errors.As(err, &jerr))
	assert.Equal(t, -2, jerr.Code)
	assert.ErrorIs(t, err, domain.ErrJoinFailed)
	assert.Equal(t, domain.StateIdle, f.o.State(domain.PurposePrimary))
}

func TestJoinTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	require.NoError(t, f.o.JoinPrimary())

	f.advance(DefaultJoinTimeout - time.Millisecond)
	assert.Equal(t, domain.StateJoining, f.o.State(domain.PurposePrimary))
	f.advance(time.Millisecond)
	assert.Equal(t, domain.StateIdle, f.o.State(domain.PurposePrimary))
	assert.Equal(t, []string{"join", "leave"}, f.tr.ops())

	require.Len(t, f.view.errs, 1)
	var jerr *domain.JoinFailedError
	require.True(t, errors.As(f.view.errs[0], &jerr))
	assert.Equal(t, domain.CodeJoinTimeout, jerr.Code)

	f.o.OnJoined(f.conn(123), time.Second)
	assert.Equal(t, domain.StateIdle, f.o.State(domain.PurposePrimary))
}

func TestSecondaryBeforePrimaryFails(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	assert.ErrorIs(t, f.o.JoinScreenShare(), domain.ErrPrimaryNotJoined)
	assert.Empty(t, f.tr.calls)
}

func TestSecondaryJoinsAreContinuationsOfPrimary(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	require.NoError(t, f.o.JoinPrimary())
	require.NoError(t, f.o.JoinScreenShare())
	require.NoError(t, f.o.JoinAvatar())
	require.NoError(t, f.o.JoinAvatar())
	assert.Equal(t, []string{"join"}, f.tr.ops())

	f.o.OnJoined(f.conn(123), time.Millisecond)
	assert.Equal(t, []string{"join", "join_secondary", "join_secondary"}, f.tr.ops())
	assert.Equal(t, domain.UID(456), f.tr.calls[1].conn.LocalUID)
	assert.True(t, f.tr.calls[1].opts.Publish.Screen)
	assert.False(t, f.tr.calls[1].opts.Subscribe.Audio)
	assert.Equal(t, domain.UID(785), f.tr.calls[2].conn.LocalUID)
	assert.True(t, f.tr.calls[2].opts.Publish.CustomVideo)

	assert.Equal(t, domain.StateJoining, f.o.State(domain.PurposeScreenShare))
	f.o.OnJoined(f.conn(456), time.Millisecond)
	assert.Equal(t, domain.StateJoined, f.o.State(domain.PurposeScreenShare))
}

func TestAutoJoinChainsOffPrimary(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleTeacher, domain.PurposeScreenShare)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	require.NoError(t, f.o.JoinPrimary())
	f.o.OnJoined(f.conn(321), time.Millisecond)
	assert.Equal(t, []string{"join", "join_secondary"}, f.tr.ops())
	assert.Equal(t, domain.UID(654), f.tr.calls[1].conn.LocalUID)
}

func TestPrimaryFailureDropsContinuations(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	require.NoError(t, f.o.JoinPrimary())
	require.NoError(t, f.o.JoinScreenShare())
	f.o.OnJoinFailed(f.conn(123), 5)

	require.NoError(t, f.o.JoinPrimary())
	f.o.OnJoined(f.conn(123), time.Millisecond)
	assert.Equal(t, []string{"join", "join"}, f.tr.ops())
}

func TestTeacherHasNoAvatar(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleTeacher)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	assert.ErrorIs(t, f.o.JoinAvatar(), domain.ErrPurposeNotConfigured)
}

func TestAtMostOneSubConnectionPerPurpose(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	require.NoError(t, f.o.JoinPrimary())
	require.NoError(t, f.o.JoinScreenShare())
	require.NoError(t, f.o.JoinScreenShare())

	counts := map[domain.Purpose]int{}
	for _, sc := range f.o.Registry.Snapshot() {
		counts[sc.Purpose]++
	}
	for p, n := range counts {
		assert.Equal(t, 1, n, p.String())
	}
	assert.Equal(t, []string{"join", "join_secondary"}, f.tr.ops())
}

func TestLeaveAllReverseOrderAndUnhooksSink(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	require.NoError(t, f.o.JoinScreenShare())
	f.o.OnJoined(f.conn(456), time.Millisecond)
	require.NoError(t, f.o.JoinAvatar())

	f.o.LeaveAll()
	assert.Nil(t, f.tr.sink)
	ops := f.tr.ops()
	assert.Equal(t, []string{"leave_secondary", "leave_secondary", "leave"}, ops[len(ops)-3:])
	assert.Equal(t, domain.UID(785), f.tr.calls[len(ops)-3].conn.LocalUID)
	assert.Equal(t, domain.UID(456), f.tr.calls[len(ops)-2].conn.LocalUID)
	for _, p := range domain.Purposes {
		assert.Equal(t, domain.StateIdle, f.o.State(p))
	}

	before := len(f.tr.calls)
	f.o.OnJoined(f.conn(785), time.Millisecond)
	f.o.LeaveAll()
	assert.Len(t, f.tr.calls, before)
	assert.Equal(t, domain.StateIdle, f.o.State(domain.PurposeAvatar))
}

func TestRejoinAfterLeaveReinstallsSink(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	f.o.LeaveAll()
	require.NoError(t, f.o.JoinPrimary())
	assert.Same(t, f.o, f.tr.sink)
}

func TestShutdownReleasesOnce(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	f.o.Shutdown()
	f.o.Shutdown()
	assert.True(t, f.tr.released)
	assert.False(t, f.o.Initialized())
	assert.ErrorIs(t, f.o.JoinPrimary(), domain.ErrNotInitialized)
}

func TestRemoteParticipantsClassified(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	f.o.OnRemoteJoined(f.conn(123), 321)
	f.o.OnRemoteJoined(f.conn(123), 654)
	f.o.OnRemoteJoined(f.conn(123), 456)
	f.o.OnRemoteJoined(f.conn(123), 99999)
	f.o.OnRemoteJoined(f.conn(456), 321)

	require.Len(t, f.view.joined, 2)
	assert.Equal(t, "primary", f.view.joined[0].Purpose)
	assert.Equal(t, "screen_share", f.view.joined[1].Purpose)
	assert.Len(t, f.o.Snapshot().Remotes, 2)

	f.o.OnRemoteLeft(f.conn(123), 654, 0)
	f.o.OnRemoteLeft(f.conn(123), 99999, 0)
	assert.Len(t, f.view.left, 1)

	f.o.LeaveAll()
	assert.Len(t, f.view.left, 2)
	assert.Empty(t, f.o.Registry.Remotes())
}

func TestInboundDispatch(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	msg := func(s string) []byte { return []byte(s) }

	f.o.OnStreamMessage(f.conn(123), 321, 0, msg("CURSOR_POS:0.5,0.25"))
	f.o.OnStreamMessage(f.conn(123), 321, 0, msg("CURSOR_POS:bad,data"))
	f.o.OnStreamMessage(f.conn(123), 321, 0, msg("HELLO"))
	f.o.OnStreamMessage(f.conn(123), 321, 0, msg(`CHAT_MSG:{"key":42,"timestamp":"t","content":"first"}`))
	f.o.OnStreamMessage(f.conn(123), 321, 0, msg(`CHAT_MSG:{"key":42,"timestamp":"t","content":"second"}`))
	f.o.OnStreamMessage(f.conn(123), 99999, 0, msg(`CHAT_MSG:{"key":43,"timestamp":"t","content":"spoof"}`))
	f.o.OnStreamMessage(f.conn(123), 321, 0, msg("CURSOR_POS:-1,-1"))

	assert.Equal(t, [][2]float64{{0.5, 0.25}}, f.view.moved)
	assert.Equal(t, 1, f.view.hidden)
	require.Len(t, f.view.chats, 1)
	assert.Equal(t, "first", f.view.chats[0].Content)
	require.Len(t, f.o.ChatEntries(), 1)
	assert.Equal(t, int64(42), f.o.ChatEntries()[0].Key)
}

func TestSnapshotCarriesPeerCursor(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	assert.Nil(t, f.o.Snapshot().PeerCursor)

	f.o.OnStreamMessage(f.conn(123), 321, 0, []byte("CURSOR_POS:0.5,0.25"))
	require.NotNil(t, f.o.Snapshot().PeerCursor)
	assert.Equal(t, core.CursorView{X: 0.5, Y: 0.25}, *f.o.Snapshot().PeerCursor)

	f.o.OnStreamMessage(f.conn(123), 321, 0, []byte("CURSOR_POS:-1,-1"))
	assert.Nil(t, f.o.Snapshot().PeerCursor)
}

func TestSendControlCachesStream(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	require.True(t, f.o.SendChat("hello"))
	require.True(t, f.o.SendChat("again"))
	assert.Equal(t, 1, countOps(f.tr, "create_stream"))
	require.Len(t, f.tr.sent, 2)

	m, err := protocol.Decode(f.tr.sent[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", m.(protocol.Chat).Content)
	assert.Empty(t, f.o.ChatEntries())

	f.o.LeaveAll()
	require.NoError(t, f.o.JoinPrimary())
	f.o.OnJoined(f.conn(123), time.Millisecond)
	require.True(t, f.o.SendChat("after rejoin"))
	assert.Equal(t, 2, countOps(f.tr, "create_stream"))
}

func TestSendRequiresJoinedPrimary(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	assert.ErrorIs(t, f.o.SendControl(protocol.CursorHide{}), domain.ErrPrimaryNotJoined)
	assert.False(t, f.o.SendChat("hi"))
	assert.ErrorIs(t, f.o.SendControl(protocol.Chat{Key: 1}), protocol.ErrEmptyMessage)
}

func TestSendFailureSurfacesAsFalse(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	f.tr.sendErr = errors.New("stream closed")
	assert.False(t, f.o.SendChat("hello"))
	assert.ErrorIs(t, f.o.SendControl(protocol.CursorHide{}), domain.ErrSendFailed)
}

func TestCursorStreamsThroughTick(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	f.o.SetTrackedRect(cursor.Rect{X: 0, Y: 0, W: 100, H: 100})
	f.o.Input.Press(cursor.Point{X: 50, Y: 25})
	f.advance(50 * time.Millisecond)
	f.o.SetFocus(false)
	f.advance(50 * time.Millisecond)

	require.Len(t, f.tr.sent, 2)
	assert.Equal(t, "CURSOR_POS:0.5,0.25", string(f.tr.sent[0]))
	assert.Equal(t, "CURSOR_POS:-1,-1", string(f.tr.sent[1]))
}

func TestPrimaryDropLeavesEverything(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	require.NoError(t, f.o.JoinScreenShare())
	f.o.OnJoined(f.conn(456), time.Millisecond)
	f.o.OnLeft(f.conn(123), core.LeaveStats{Duration: time.Minute})

	assert.Equal(t, domain.StateIdle, f.o.State(domain.PurposePrimary))
	assert.Equal(t, domain.StateIdle, f.o.State(domain.PurposeScreenShare))
}

func TestPrimaryDropIssuesNoLeaveForDroppedConnection(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	require.NoError(t, f.o.JoinScreenShare())
	f.o.OnJoined(f.conn(456), time.Millisecond)
	before := len(f.tr.calls)

	f.o.OnLeft(f.conn(123), core.LeaveStats{Duration: time.Minute})

	assert.Equal(t, []string{"leave_secondary"}, f.tr.ops()[before:])
	assert.Nil(t, f.tr.sink)
}

func TestLeaveAllUnhooksSinkBeforeFinalHide(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	f.o.SetTrackedRect(cursor.Rect{W: 100, H: 100})
	f.o.Input.Press(cursor.Point{X: 50, Y: 50})
	f.advance(time.Second)
	require.True(t, f.o.Cursor.Streaming())
	shows := len(f.tr.sent)

	f.o.LeaveAll()

	require.Len(t, f.tr.sent, shows+1)
	assert.Equal(t, shows, f.tr.sentAtUnhook)
	m, err := protocol.Decode(f.tr.sent[shows])
	require.NoError(t, err)
	assert.Equal(t, protocol.CursorHide{}, m)
}

func TestLeaveCancelsDeferredSecondary(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleStudent)
	require.NoError(t, f.o.Initialize("app1", "tok1", "room1"))
	require.NoError(t, f.o.JoinPrimary())
	require.NoError(t, f.o.JoinScreenShare())

	require.NoError(t, f.o.Leave(domain.PurposeScreenShare))
	f.o.OnJoined(f.conn(123), time.Millisecond)

	assert.Equal(t, []string{"join"}, f.tr.ops())
	assert.Equal(t, domain.StateIdle, f.o.State(domain.PurposeScreenShare))
	assert.ErrorIs(t, f.o.Leave(domain.PurposeScreenShare), domain.ErrNotFound)
}

func TestLeaveSingleSecondary(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	require.NoError(t, f.o.JoinAvatar())
	f.o.OnJoined(f.conn(785), time.Millisecond)
	before := len(f.tr.calls)

	require.NoError(t, f.o.Leave(domain.PurposeAvatar))
	assert.Equal(t, []string{"leave_secondary"}, f.tr.ops()[before:])
	assert.Equal(t, domain.StateIdle, f.o.State(domain.PurposeAvatar))
	assert.Equal(t, domain.StateJoined, f.o.State(domain.PurposePrimary))

	assert.ErrorIs(t, f.o.Leave(domain.PurposeAvatar), domain.ErrNotFound)

	require.NoError(t, f.o.Leave(domain.PurposePrimary))
	assert.Equal(t, domain.StateIdle, f.o.State(domain.PurposePrimary))
	assert.ErrorIs(t, f.o.Leave(domain.PurposePrimary), domain.ErrNotFound)
}

func TestSnapshotListsConfiguredPurposes(t *testing.T) {
	t.Parallel()

	f := joinedStudent(t)
	snap := f.o.Snapshot()
	assert.Equal(t, "student", snap.Role)
	assert.True(t, snap.Initialized)
	require.Len(t, snap.SubConnections, 3)
	assert.Equal(t, "joined", snap.SubConnections[0].State)
	assert.Equal(t, "idle", snap.SubConnections[2].State)
}

func TestTriggerReachesView(t *testing.T) {
	t.Parallel()

	f := newFixture(domain.RoleTeacher)
	f.o.OnTrigger("f5")
	assert.Equal(t, []string{"f5"}, f.view.triggers)
}

func countOps(f *fakeTransport, op string) int {
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}
