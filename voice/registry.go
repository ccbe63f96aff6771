package voice

import "sort"

// Registry maps voice ids to live voices and indexes auxiliary voices by
// their parent id. It is owned by a Controller and not safe for concurrent
// use on its own.
type Registry struct {
	voices   map[string]*Voice
	children map[string][]*Voice
}

func NewRegistry() *Registry {
	return &Registry{
		voices:   make(map[string]*Voice),
		children: make(map[string][]*Voice),
	}
}

func (r *Registry) Get(id string) (*Voice, bool) {
	v, ok := r.voices[id]
	return v, ok
}

func (r *Registry) Len() int {
	return len(r.voices)
}

// Put records v, replacing whatever was registered under its id.
func (r *Registry) Put(v *Voice) {
	if old, ok := r.voices[v.ID]; ok && old != v {
		r.Remove(old)
	}
	r.voices[v.ID] = v
	if v.parent != nil {
		r.children[v.ParentID] = append(r.children[v.ParentID], v)
	}
}

// Children returns the auxiliary voices of the voice registered under id.
func (r *Registry) Children(id string) []*Voice {
	parent, ok := r.voices[id]
	if !ok {
		return nil
	}
	var res []*Voice
	for _, c := range r.children[id] {
		if c.parent == parent {
			res = append(res, c)
		}
	}
	return res
}

// Remove deletes v and its auxiliary voices, but only if v is still the
// voice registered under its id. It reports whether anything was removed.
func (r *Registry) Remove(v *Voice) bool {
	if cur, ok := r.voices[v.ID]; !ok || cur != v {
		return false
	}
	for _, c := range r.Children(v.ID) {
		r.Remove(c)
	}
	delete(r.voices, v.ID)
	r.unlink(v)
	if v.parent == nil {
		delete(r.children, v.ID)
	}
	return true
}

func (r *Registry) unlink(v *Voice) {
	if v.parent == nil {
		return
	}
	siblings := r.children[v.ParentID]
	for i, c := range siblings {
		if c == v {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(r.children, v.ParentID)
		return
	}
	r.children[v.ParentID] = siblings
}

// IDs lists every registered id in lexical order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.voices))
	for id := range r.voices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Voices returns the registered voices ordered by id.
func (r *Registry) Voices() []*Voice {
	ids := r.IDs()
	res := make([]*Voice, len(ids))
	for i, id := range ids {
		res[i] = r.voices[id]
	}
	return res
}
