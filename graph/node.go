package graph

// Node is anything that produces a signal.
type Node interface {
	// Connect routes the node's output into a Gain, a filter or a Param.
	Connect(dst Input)
	// Disconnect removes the node from every destination.
	Disconnect()
	// ConnectedSeq is the context sequence number of the latest Connect.
	ConnectedSeq() int64

	pull(frame int64, t float64) float64
	done(t float64) bool
}

// Input is a destination a Node can be connected to.
type Input interface {
	addInput(n Node)
	removeInput(n Node)
}

type processor interface {
	process(frame int64, t float64) float64
	finished(t float64) bool
}

type base struct {
	ctx       *Context
	proc      processor
	outputs   []Input
	connected int64
	frame     int64
	out       float64
}

func newBase(ctx *Context, proc processor) base {
	return base{ctx: ctx, proc: proc, frame: -1}
}

func (b *base) connect(self Node, dst Input) {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	dst.addInput(self)
	b.outputs = append(b.outputs, dst)
	b.connected = b.ctx.nextSeq()
}

func (b *base) disconnect(self Node) {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	for _, dst := range b.outputs {
		dst.removeInput(self)
	}
	b.outputs = nil
}

func (b *base) ConnectedSeq() int64 {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	return b.connected
}

func (b *base) pull(frame int64, t float64) float64 {
	if b.frame == frame {
		return b.out
	}
	b.frame = frame
	b.out = b.proc.process(frame, t)
	return b.out
}

func (b *base) done(t float64) bool {
	return b.proc.finished(t)
}

func removeNode(nodes []Node, n Node) []Node {
	for i, in := range nodes {
		if in == n {
			return append(nodes[:i], nodes[i+1:]...)
		}
	}
	return nodes
}

// mixer sums its inputs and drops the ones that have finished.
type mixer struct {
	inputs []Node
	fed    bool
}

func (m *mixer) addInput(n Node) {
	m.inputs = append(m.inputs, n)
	m.fed = true
}

func (m *mixer) removeInput(n Node) {
	m.inputs = removeNode(m.inputs, n)
}

func (m *mixer) sum(frame int64, t float64) float64 {
	var v float64
	live := m.inputs[:0]
	for _, in := range m.inputs {
		if in.done(t) {
			continue
		}
		v += in.pull(frame, t)
		live = append(live, in)
	}
	m.inputs = live
	return v
}

func (m *mixer) hasLiveInputs(t float64) bool {
	for _, in := range m.inputs {
		if !in.done(t) {
			return true
		}
	}
	return false
}

// drained is true once the mixer has been fed and everything upstream ended.
func (m *mixer) drained(t float64) bool {
	return m.fed && !m.hasLiveInputs(t)
}
