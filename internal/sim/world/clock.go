package world

// Clock is the server-wide day clock. Every level of a server reads the same
// Clock, so all dimensions agree on the day index.
type Clock struct {
	t int64
}

func NewClock(t int64) *Clock { return &Clock{t: t} }

// Now is the total ticks since the world started, not reduced modulo the
// day length.
func (c *Clock) Now() int64 { return c.t }

func (c *Clock) Set(t int64) { c.t = t }

func (c *Clock) Advance() { c.t++ }
