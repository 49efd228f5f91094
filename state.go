package dronelink

// RunState is the lifecycle state of a Session.
type RunState int

const (
	Disconnected RunState = iota
	Connected
	Initialized
	Running
	Stopped
)

func (s RunState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// hasLink reports whether a session in state s owns an open link.
func (s RunState) hasLink() bool {
	return s != Disconnected
}
