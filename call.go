package warp

import "log/slog"

// Call represents one in-flight method invocation. The pipeline completes
// it exactly once, delivering either a value or an error on Done.
type Call struct {
	// ConfigKey identifies the invoked method.
	ConfigKey string
	// Args holds the call arguments.
	Args []interface{}
	// Value holds the decoded result once the call completes. For raw-return
	// methods it is the *Response itself.
	Value interface{}
	// Err holds the terminal error, nil on success.
	Err error
	// Done receives the call when it completes.
	Done chan *Call
}

// done delivers the completed call on Done without blocking.
func (c *Call) done() {
	select {
	case c.Done <- c:
		// ok
	default:
		// We don't want to block here. It's the caller's responsibility to
		// make sure the channel has enough buffer space.
		slog.Warn("warp: discarding call result due to insufficient Done chan capacity",
			"config_key", c.ConfigKey)
	}
}
