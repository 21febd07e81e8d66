package realtime

import (
	"fmt"
	"sync"

	"github.com/taskora/taskora-go/core"
)

// Channel owns a single realtime transport and decouples its lifecycle
// from UI subscriber lifecycle: server pushes are re-emitted 1:1 into a
// local registry, and client commands are fire-and-forget, silently
// dropped while disconnected.
type Channel struct {
	dial Dialer
	log  core.Logger

	mu        sync.Mutex
	transport Transport
	connected bool
	// gen stamps each Connect; callbacks from a torn-down transport
	// carry a stale gen and are dropped.
	gen int

	subs *registry
}

func NewChannel(dial Dialer, log core.Logger) *Channel {
	return &Channel{dial: dial, log: log, subs: newRegistry()}
}

// connHandler routes one transport's callbacks back into the channel.
type connHandler struct {
	ch  *Channel
	gen int
}

func (h *connHandler) HandleOpen()               { h.ch.onOpen(h.gen) }
func (h *connHandler) HandleMessage(msg Message) { h.ch.onMessage(h.gen, msg) }
func (h *connHandler) HandleClose(reason string) { h.ch.onClose(h.gen, reason) }
func (h *connHandler) HandleError(err error)     { h.ch.onError(h.gen, err) }

// Connect tears down any existing transport and opens a new one
// authenticated with token. It returns immediately; completion is
// observed via the connection_status local event. Dial failures are
// reported through connection_error, never returned.
func (c *Channel) Connect(token string) {
	c.mu.Lock()
	old := c.transport
	c.transport = nil
	c.connected = false
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.log.Warn("closing previous realtime transport", err)
		}
	}

	tr, err := c.dial(token, &connHandler{ch: c, gen: gen})
	if err != nil {
		c.log.Error("realtime dial failed", err)
		c.subs.emit(c.log, EventConnectionError, map[string]interface{}{"message": err.Error()})
		return
	}

	c.mu.Lock()
	if c.gen == gen {
		c.transport = tr
	}
	c.mu.Unlock()
}

// Disconnect is a full reset: it tears down the transport and clears
// all local subscribers, not just transport-level wiring.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	tr := c.transport
	c.transport = nil
	c.connected = false
	c.gen++
	c.mu.Unlock()

	if tr != nil {
		if err := tr.Close(); err != nil {
			c.log.Warn("closing realtime transport", err)
		}
	}
	c.subs.clear()
}

// Reconnect asks the existing transport to re-establish, without
// rebuilding subscriber wiring. A no-op when nothing was ever
// connected.
func (c *Channel) Reconnect() {
	c.mu.Lock()
	tr := c.transport
	c.mu.Unlock()
	if tr == nil {
		c.log.Debug("reconnect ignored: no transport")
		return
	}
	tr.Reconnect()
}

func (c *Channel) On(event string, cb Callback)  { c.subs.on(event, cb) }
func (c *Channel) Off(event string, cb Callback) { c.subs.off(event, cb) }

// IsSocketConnected is true iff the local connected flag and the
// transport's own reported state agree.
func (c *Channel) IsSocketConnected() bool {
	c.mu.Lock()
	tr, connected := c.transport, c.connected
	c.mu.Unlock()
	return connected && tr != nil && tr.Connected()
}

// Fire-and-forget commands. Each is silently dropped (not queued) when
// the channel is not currently connected.

func (c *Channel) JoinStudentRoom(studentID string) {
	c.send(cmdJoinStudentRoom, map[string]interface{}{"student_id": studentID})
}

func (c *Channel) LeaveStudentRoom(studentID string) {
	c.send(cmdLeaveStudentRoom, map[string]interface{}{"student_id": studentID})
}

func (c *Channel) UpdateTask(taskID string, updates map[string]interface{}) {
	c.send(cmdUpdateTask, map[string]interface{}{"task_id": taskID, "updates": updates})
}

func (c *Channel) SendComment(taskID, studentID, content string) {
	c.send(cmdSendComment, map[string]interface{}{
		"task_id":    taskID,
		"student_id": studentID,
		"content":    content,
	})
}

func (c *Channel) send(event string, data interface{}) {
	c.mu.Lock()
	tr, connected := c.transport, c.connected
	c.mu.Unlock()
	if tr == nil || !connected {
		c.log.Debug("dropping realtime command while disconnected", event)
		return
	}
	if err := tr.Emit(event, data); err != nil {
		c.log.Error(fmt.Sprintf("emitting %s", event), err)
	}
}

func (c *Channel) stale(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.gen
}

func (c *Channel) onOpen(gen int) {
	if c.stale(gen) {
		return
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.subs.emit(c.log, EventConnectionStatus, map[string]interface{}{"connected": true})
}

func (c *Channel) onClose(gen int, reason string) {
	if c.stale(gen) {
		return
	}
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.subs.emit(c.log, EventConnectionStatus, map[string]interface{}{"connected": false, "reason": reason})
}

func (c *Channel) onError(gen int, err error) {
	if c.stale(gen) {
		return
	}
	c.subs.emit(c.log, EventConnectionError, map[string]interface{}{"message": err.Error()})
}

// onMessage re-emits a server push into the local registry. Content is
// never transformed, only re-labelled where the vocabulary says so.
func (c *Channel) onMessage(gen int, msg Message) {
	if c.stale(gen) {
		return
	}
	switch {
	case msg.Event == "error":
		c.subs.emit(c.log, EventSocketError, msg.Data)
	case passthroughEvents[msg.Event]:
		c.subs.emit(c.log, msg.Event, msg.Data)
	default:
		c.log.Debug("dropping unknown realtime event", msg.Event)
	}
}
