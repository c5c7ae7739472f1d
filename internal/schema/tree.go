package schema

// NodeID addresses a subkey inside its payload's tree.
type NodeID int

// NoNode is the parent of root-level subkeys.
const NoNode NodeID = -1

// Tree is the arena holding every subkey of one payload in depth-first
// order. Parent and root links are IDs into the same arena.
type Tree struct {
	payload *Payload
	nodes   []*Subkey
	roots   []NodeID
}

func newTree(p *Payload) *Tree {
	return &Tree{payload: p}
}

func (t *Tree) add(s *Subkey) NodeID {
	id := NodeID(len(t.nodes))
	s.ID = id
	s.tree = t
	t.nodes = append(t.nodes, s)
	if s.ParentID == NoNode {
		s.RootID = id
		t.roots = append(t.roots, id)
	} else {
		parent := t.nodes[s.ParentID]
		parent.ChildIDs = append(parent.ChildIDs, id)
	}
	return id
}

// Len is the number of subkeys in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the subkey with id, or nil.
func (t *Tree) Node(id NodeID) *Subkey {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Roots returns the top-level subkeys in declaration order.
func (t *Tree) Roots() []*Subkey {
	out := make([]*Subkey, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, t.nodes[id])
	}
	return out
}

// All returns every subkey in depth-first order.
func (t *Tree) All() []*Subkey {
	out := make([]*Subkey, len(t.nodes))
	copy(out, t.nodes)
	return out
}

func (t *Tree) Children(id NodeID) []*Subkey {
	s := t.Node(id)
	if s == nil {
		return nil
	}
	out := make([]*Subkey, 0, len(s.ChildIDs))
	for _, child := range s.ChildIDs {
		out = append(out, t.nodes[child])
	}
	return out
}

func (t *Tree) Parent(id NodeID) *Subkey {
	s := t.Node(id)
	if s == nil {
		return nil
	}
	return t.Node(s.ParentID)
}

// Ancestors returns the chain from the root down to the parent of id.
func (t *Tree) Ancestors(id NodeID) []*Subkey {
	var chain []*Subkey
	for p := t.Parent(id); p != nil; p = t.Parent(p.ID) {
		chain = append(chain, p)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Find looks a subkey up by key path.
func (t *Tree) Find(keyPath string) *Subkey {
	for _, s := range t.nodes {
		if s.KeyPath == keyPath {
			return s
		}
	}
	return nil
}

// Walk visits subkeys depth-first and stops early when fn returns false.
func (t *Tree) Walk(fn func(*Subkey) bool) {
	for _, s := range t.nodes {
		if !fn(s) {
			return
		}
	}
}
