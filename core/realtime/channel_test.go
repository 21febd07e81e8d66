package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *testLogger) Enable(bool) {}
func (l *testLogger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
}
func (l *testLogger) Debug(msg string, _ ...interface{}) { l.log(msg) }
func (l *testLogger) Info(msg string, _ ...interface{})  { l.log(msg) }
func (l *testLogger) Warn(msg string, _ ...interface{})  { l.log(msg) }
func (l *testLogger) Error(msg string, _ ...interface{}) { l.log(msg) }
func (l *testLogger) Fatal(msg string, _ ...interface{}) { l.log(msg) }

type emittedCmd struct {
	event string
	data  interface{}
}

type fakeTransport struct {
	mu         sync.Mutex
	token      string
	emitted    []emittedCmd
	connected  bool
	closed     bool
	reconnects int
	emitErr    error
}

func (t *fakeTransport) Emit(event string, data interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.emitErr != nil {
		return t.emitErr
	}
	t.emitted = append(t.emitted, emittedCmd{event: event, data: data})
	return nil
}

func (t *fakeTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) Reconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reconnects++
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.connected = false
	return nil
}

type fakeDialer struct {
	transports []*fakeTransport
	handlers   []Handler
	dialErr    error
}

func (d *fakeDialer) dial(token string, h Handler) (Transport, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	tr := &fakeTransport{token: token}
	d.transports = append(d.transports, tr)
	d.handlers = append(d.handlers, h)
	return tr, nil
}

// open simulates asynchronous connection establishment completing for
// the latest dialed transport.
func (d *fakeDialer) open() {
	tr := d.transports[len(d.transports)-1]
	tr.mu.Lock()
	tr.connected = true
	tr.mu.Unlock()
	d.handlers[len(d.handlers)-1].HandleOpen()
}

func (d *fakeDialer) push(event string, data string) {
	d.handlers[len(d.handlers)-1].HandleMessage(Message{Event: event, Data: json.RawMessage(data)})
}

func setup(t *testing.T) (*Channel, *fakeDialer) {
	t.Helper()
	dialer := &fakeDialer{}
	ch := NewChannel(dialer.dial, &testLogger{})
	return ch, dialer
}

func TestChannel_commands(t *testing.T) {
	t.Run("dropped before connect, forwarded exactly once after", func(t *testing.T) {
		ch, dialer := setup(t)

		ch.UpdateTask("task-1", map[string]interface{}{"status": "done"})
		assert.Empty(t, dialer.transports)

		ch.Connect("token-abc")
		// establishment still pending: command is still dropped
		ch.UpdateTask("task-1", map[string]interface{}{"status": "done"})
		assert.Empty(t, dialer.transports[0].emitted)

		dialer.open()
		ch.UpdateTask("task-1", map[string]interface{}{"status": "done"})
		require.Len(t, dialer.transports[0].emitted, 1)
		assert.Equal(t, "task_update", dialer.transports[0].emitted[0].event)
	})

	t.Run("all commands carry their payload fields", func(t *testing.T) {
		ch, dialer := setup(t)
		ch.Connect("token-abc")
		dialer.open()

		ch.JoinStudentRoom("stu-1")
		ch.LeaveStudentRoom("stu-1")
		ch.SendComment("task-1", "stu-1", "looks good")

		emitted := dialer.transports[0].emitted
		require.Len(t, emitted, 3)
		assert.Equal(t, "join_student_room", emitted[0].event)
		assert.Equal(t, "leave_student_room", emitted[1].event)
		assert.Equal(t, "comment_send", emitted[2].event)
		comment := emitted[2].data.(map[string]interface{})
		assert.Equal(t, "looks good", comment["content"])
		assert.Equal(t, "stu-1", comment["student_id"])
	})

	t.Run("dropped again after the transport reports disconnect", func(t *testing.T) {
		ch, dialer := setup(t)
		ch.Connect("token-abc")
		dialer.open()

		dialer.handlers[0].HandleClose("transport close")
		ch.UpdateTask("task-1", nil)
		assert.Empty(t, dialer.transports[0].emitted)
	})
}

func TestChannel_Connect(t *testing.T) {
	t.Run("passes the auth token to the dialer", func(t *testing.T) {
		ch, dialer := setup(t)
		ch.Connect("token-abc")
		assert.Equal(t, "token-abc", dialer.transports[0].token)
	})

	t.Run("tears down the previous transport first", func(t *testing.T) {
		ch, dialer := setup(t)
		ch.Connect("token-1")
		dialer.open()

		ch.Connect("token-2")
		assert.True(t, dialer.transports[0].closed)

		// events from the torn-down transport are ignored
		var statuses []interface{}
		ch.On(EventConnectionStatus, func(data interface{}) { statuses = append(statuses, data) })
		dialer.handlers[0].HandleOpen()
		assert.Empty(t, statuses)

		dialer.open()
		require.Len(t, statuses, 1)
		assert.Equal(t, map[string]interface{}{"connected": true}, statuses[0])
	})

	t.Run("dial failure is reported via connection_error, not returned", func(t *testing.T) {
		ch, dialer := setup(t)
		dialer.dialErr = errors.New("dns failure")

		var errs []interface{}
		ch.On(EventConnectionError, func(data interface{}) { errs = append(errs, data) })
		ch.Connect("token-abc")
		require.Len(t, errs, 1)
		assert.Equal(t, map[string]interface{}{"message": "dns failure"}, errs[0])
	})
}

func TestChannel_IsSocketConnected(t *testing.T) {
	ch, dialer := setup(t)
	assert.False(t, ch.IsSocketConnected())

	ch.Connect("token-abc")
	assert.False(t, ch.IsSocketConnected())

	dialer.open()
	assert.True(t, ch.IsSocketConnected())

	// local flag and transport state must agree
	tr := dialer.transports[0]
	tr.mu.Lock()
	tr.connected = false
	tr.mu.Unlock()
	assert.False(t, ch.IsSocketConnected())
}

func TestChannel_pushEvents(t *testing.T) {
	t.Run("vocabulary passthrough keeps content untouched", func(t *testing.T) {
		ch, dialer := setup(t)
		ch.Connect("token-abc")
		dialer.open()

		got := make(map[string][]interface{})
		for _, event := range []string{
			EventTaskUpdated, EventTaskCreated, EventTaskDeleted,
			EventCommentReceived, EventCommentAdded, EventCommentUpdated, EventCommentDeleted,
			EventNotificationReceived, EventPlannerUpdated,
		} {
			event := event
			ch.On(event, func(data interface{}) { got[event] = append(got[event], data) })
		}

		dialer.push("task_updated", `{"id":"task-1"}`)
		dialer.push("planner_updated", `{"week":12}`)

		require.Len(t, got[EventTaskUpdated], 1)
		assert.JSONEq(t, `{"id":"task-1"}`, string(got[EventTaskUpdated][0].(json.RawMessage)))
		require.Len(t, got[EventPlannerUpdated], 1)
		assert.Empty(t, got[EventTaskCreated])
	})

	t.Run("server error frames re-emit as socket_error", func(t *testing.T) {
		ch, dialer := setup(t)
		ch.Connect("token-abc")
		dialer.open()

		var errs []interface{}
		ch.On(EventSocketError, func(data interface{}) { errs = append(errs, data) })
		dialer.push("error", `{"message":"room full"}`)
		require.Len(t, errs, 1)
	})

	t.Run("disconnect status carries the reason", func(t *testing.T) {
		ch, dialer := setup(t)
		ch.Connect("token-abc")
		dialer.open()

		var statuses []interface{}
		ch.On(EventConnectionStatus, func(data interface{}) { statuses = append(statuses, data) })
		dialer.handlers[0].HandleClose("going away")
		require.Len(t, statuses, 1)
		assert.Equal(t, map[string]interface{}{"connected": false, "reason": "going away"}, statuses[0])
	})

	t.Run("a panicking subscriber does not starve an independent one", func(t *testing.T) {
		ch, dialer := setup(t)
		ch.Connect("token-abc")
		dialer.open()

		var called bool
		ch.On(EventTaskUpdated, func(interface{}) { panic("boom") })
		ch.On(EventTaskUpdated, func(interface{}) { called = true })
		dialer.push("task_updated", `{}`)
		assert.True(t, called)
	})
}

func TestChannel_Off(t *testing.T) {
	ch, dialer := setup(t)
	ch.Connect("token-abc")
	dialer.open()

	var count int
	cb := func(interface{}) { count++ }
	ch.On(EventTaskUpdated, cb)
	ch.On(EventTaskUpdated, cb) // duplicate registration

	dialer.push("task_updated", `{}`)
	assert.Equal(t, 2, count)

	// removes exactly one registration of cb
	ch.Off(EventTaskUpdated, cb)
	dialer.push("task_updated", `{}`)
	assert.Equal(t, 3, count)

	ch.Off(EventTaskUpdated, cb)
	dialer.push("task_updated", `{}`)
	assert.Equal(t, 3, count)
}

func TestChannel_Disconnect_isFullReset(t *testing.T) {
	ch, dialer := setup(t)
	ch.Connect("token-abc")
	dialer.open()

	var count int
	ch.On(EventTaskUpdated, func(interface{}) { count++ })

	ch.Disconnect()
	assert.True(t, dialer.transports[0].closed)
	assert.False(t, ch.IsSocketConnected())

	// subscribers were cleared, not paused
	ch.Connect("token-abc")
	dialer.open()
	dialer.push("task_updated", `{}`)
	assert.Equal(t, 0, count)
}

func TestChannel_Reconnect(t *testing.T) {
	ch, dialer := setup(t)

	// no transport yet: a no-op
	ch.Reconnect()

	ch.Connect("token-abc")
	dialer.open()

	var count int
	ch.On(EventTaskUpdated, func(interface{}) { count++ })
	ch.Reconnect()
	assert.Equal(t, 1, dialer.transports[0].reconnects)

	// subscriber wiring survives a reconnect
	dialer.push("task_updated", `{}`)
	assert.Equal(t, 1, count)
}
