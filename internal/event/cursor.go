package event

import "fmt"

// Cursor is the durable high-water mark of the replay pipeline: every event
// at or below it has been applied to the mirror exactly once. Ordering is
// lexicographic on (Seq, SubIndex).
type Cursor struct {
	Seq      int64
	SubIndex int64
}

// Before reports whether c is strictly below o in log order.
func (c Cursor) Before(o Cursor) bool {
	if c.Seq != o.Seq {
		return c.Seq < o.Seq
	}
	return c.SubIndex < o.SubIndex
}

// AtOrAfter reports whether c is at or beyond o.
func (c Cursor) AtOrAfter(o Cursor) bool {
	return !c.Before(o)
}

func (c Cursor) String() string {
	return fmt.Sprintf("(%d,%d)", c.Seq, c.SubIndex)
}
