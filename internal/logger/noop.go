package logger

// Noop is a logger that discards everything. Used in tests and as a
// safe default before configuration is loaded.
type Noop struct{}

// NewNoop creates a no-op logger.
func NewNoop() Interface { return &Noop{} }

// Debug does nothing.
func (n *Noop) Debug(string, ...any) {}

// Info does nothing.
func (n *Noop) Info(string, ...any) {}

// Warn does nothing.
func (n *Noop) Warn(string, ...any) {}

// Error does nothing.
func (n *Noop) Error(string, ...any) {}

// With returns the same no-op logger.
func (n *Noop) With(...any) Interface { return n }

// WithComponent returns the same no-op logger.
func (n *Noop) WithComponent(string) Interface { return n }

// WithError returns the same no-op logger.
func (n *Noop) WithError(error) Interface { return n }
