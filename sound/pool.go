package sound

import (
	"sync"

	"github.com/jsphweid/keystation/graph"
)

// Pool hands out sample buffers in strict rotation so repeated notes never
// reuse the same recording twice in a row.
type Pool struct {
	mu      sync.Mutex
	buffers []*graph.Buffer
	cursor  int
}

func NewPool(buffers ...*graph.Buffer) *Pool {
	return &Pool{buffers: buffers}
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffers)
}

// Replace swaps the pool contents and rewinds the cursor.
func (p *Pool) Replace(buffers []*graph.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffers = buffers
	p.cursor = 0
}

// Next returns the buffer under the cursor and advances it.
func (p *Pool) Next() (*graph.Buffer, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buffers) == 0 {
		return nil, -1, false
	}
	i := p.cursor % len(p.buffers)
	p.cursor = (i + 1) % len(p.buffers)
	return p.buffers[i], i, true
}

func (p *Pool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}
