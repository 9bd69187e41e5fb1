package executor

import "bytes"

// CappedBuffer keeps at most Limit bytes and silently drops the rest, so a
// snippet printing in a loop cannot exhaust server memory.
type CappedBuffer struct {
	Limit     int
	buf       bytes.Buffer
	truncated bool
}

// Write always reports the full length as written; io.Copy-style readers
// would otherwise stop early and leave the container blocked on a full pipe.
func (c *CappedBuffer) Write(p []byte) (int, error) {
	room := c.Limit - c.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			c.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *CappedBuffer) String() string  { return c.buf.String() }
func (c *CappedBuffer) Truncated() bool { return c.truncated }
