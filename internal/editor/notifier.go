package editor

// Notifier is the toast boundary. Every error is terminal here; nothing
// propagates past it.
type Notifier interface {
	// Conflict fires when the server rejected a stale mutation. The
	// optimistic state is left in place; the user is told to refresh.
	Conflict(message string)
	// TransportError fires on network failures. No retry is scheduled; the
	// user re-triggers by editing again.
	TransportError(err error)
	// PermissionDenied fires when a non-coach tries to edit. No network
	// call was made.
	PermissionDenied()
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Conflict(string)       {}
func (NopNotifier) TransportError(error)  {}
func (NopNotifier) PermissionDenied()     {}
