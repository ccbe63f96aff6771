package graph

// Gain multiplies the sum of its inputs by an automatable factor.
type Gain struct {
	base
	mixer
	Gain       *Param
	persistent bool
}

// NewGain creates a gain node. It finishes once every input has finished.
func (c *Context) NewGain(v float64) *Gain {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newGain(v)
}

// NewBus creates a summing gain that never finishes, for master buses.
func (c *Context) NewBus(v float64) *Gain {
	g := c.NewGain(v)
	g.persistent = true
	return g
}

func (c *Context) newGain(v float64) *Gain {
	g := &Gain{Gain: newParam(c, v)}
	g.base = newBase(c, g)
	return g
}

func (g *Gain) Connect(dst Input) { g.connect(g, dst) }
func (g *Gain) Disconnect()       { g.disconnect(g) }

// Inputs is the number of nodes currently feeding the gain.
func (g *Gain) Inputs() int {
	g.ctx.mu.Lock()
	defer g.ctx.mu.Unlock()
	return len(g.inputs)
}

func (g *Gain) process(frame int64, t float64) float64 {
	in := g.sum(frame, t)
	if in == 0 && len(g.Gain.inputs) == 0 {
		return 0
	}
	return in * g.Gain.at(frame, t)
}

func (g *Gain) finished(t float64) bool {
	if g.persistent {
		return false
	}
	return g.drained(t)
}
