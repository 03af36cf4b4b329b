package ledger

// CallCursor is a peekable position into an ordered call sequence.
// The orchestrator holds one cursor across transaction batches so a
// call that overflowed one batch is the first call tried in the next:
// nothing is dropped and nothing is duplicated across the boundary.
type CallCursor struct {
	calls []Call
	pos   int
}

func NewCallCursor(calls []Call) *CallCursor {
	return &CallCursor{calls: calls}
}

// Peek returns the next call without consuming it.
func (c *CallCursor) Peek() (Call, bool) {
	if c.pos >= len(c.calls) {
		return Call{}, false
	}
	return c.calls[c.pos], true
}

// Advance consumes the call returned by the last Peek.
func (c *CallCursor) Advance() {
	if c.pos < len(c.calls) {
		c.pos++
	}
}

// Remaining is the number of unconsumed calls.
func (c *CallCursor) Remaining() int {
	return len(c.calls) - c.pos
}
