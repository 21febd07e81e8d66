package realtime

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/taskora/taskora-go/core"
)

// Local event names re-emitted 1:1 from the transport. UI code
// subscribes to these and never touches the transport itself.
const (
	EventConnectionStatus     = "connection_status"
	EventConnectionError      = "connection_error"
	EventSocketError          = "socket_error"
	EventTaskUpdated          = "task_updated"
	EventTaskCreated          = "task_created"
	EventTaskDeleted          = "task_deleted"
	EventCommentReceived      = "comment_received"
	EventCommentAdded         = "comment_added"
	EventCommentUpdated       = "comment_updated"
	EventCommentDeleted       = "comment_deleted"
	EventNotificationReceived = "notification_received"
	EventPlannerUpdated       = "planner_updated"
)

// Client→server command names.
const (
	cmdJoinStudentRoom  = "join_student_room"
	cmdLeaveStudentRoom = "leave_student_room"
	cmdUpdateTask       = "task_update"
	cmdSendComment      = "comment_send"
)

// passthroughEvents are server pushes re-emitted under their own name.
var passthroughEvents = map[string]bool{
	EventTaskUpdated:          true,
	EventTaskCreated:          true,
	EventTaskDeleted:          true,
	EventCommentReceived:      true,
	EventCommentAdded:         true,
	EventCommentUpdated:       true,
	EventCommentDeleted:       true,
	EventNotificationReceived: true,
	EventPlannerUpdated:       true,
}

// Callback receives the event payload as delivered by the transport
// (json.RawMessage for server pushes, map for synthesized events).
type Callback func(data interface{})

// registry maps event names to ordered callback lists.
type registry struct {
	mu       sync.Mutex
	handlers map[string][]Callback
}

func newRegistry() *registry {
	return &registry{handlers: make(map[string][]Callback)}
}

func (r *registry) on(event string, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], cb)
}

// off removes one instance of the exact callback reference; a duplicate
// registration of the same callback still fires once per remaining
// registration.
func (r *registry) off(event string, cb Callback) {
	ptr := reflect.ValueOf(cb).Pointer()
	r.mu.Lock()
	defer r.mu.Unlock()
	cbs := r.handlers[event]
	for i, registered := range cbs {
		if reflect.ValueOf(registered).Pointer() == ptr {
			r.handlers[event] = append(cbs[:i], cbs[i+1:]...)
			return
		}
	}
}

// emit delivers synchronously in registration order. A panicking
// callback is logged per-callback and does not prevent delivery to the
// remaining subscribers for the event.
func (r *registry) emit(log core.Logger, event string, data interface{}) {
	r.mu.Lock()
	cbs := make([]Callback, len(r.handlers[event]))
	copy(cbs, r.handlers[event])
	r.mu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(fmt.Sprintf("%s subscriber panicked: %v", event, rec))
				}
			}()
			cb(data)
		}()
	}
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string][]Callback)
}
