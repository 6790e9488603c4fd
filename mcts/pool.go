package mcts

// blockSize is the recommended 64 MiB block the spec calls for, expressed
// as a node count so Pool can slice a single backing array per block
// instead of allocating one *Node at a time.
const blockSize = (64 << 20) / nodeSize

// nodeSize is an estimate of Node's heap footprint used only to size
// blocks; it doesn't need to be exact, just in the right ballpark so a
// block is a handful of MiB either way.
const nodeSize = 96

// Pool is a thread-local fixed-size block allocator for Node. It never
// shrinks: freed nodes return to a free list rather than being released
// back to the runtime, bounding fragmentation at the cost of holding the
// high-water mark of nodes ever live at once.
type Pool struct {
	blocks    [][]Node
	next      int // index of the next unused slot in blocks[len(blocks)-1]
	free      []*Node
	allocated int64
}

// NewPool allocates a pool with one block ready to hand out nodes from.
func NewPool() *Pool {
	p := &Pool{}
	p.addBlock()
	return p
}

func (p *Pool) addBlock() {
	p.blocks = append(p.blocks, make([]Node, blockSize))
	p.next = 0
}

// NewNode returns a zeroed node initialized with prior, drawn from the
// free list if non-empty, else from the current block, growing the pool
// with a fresh block if the current one is exhausted.
func (p *Pool) NewNode(prior float32) *Node {
	p.allocated++

	if n := len(p.free); n > 0 {
		var node = p.free[n-1]
		p.free = p.free[:n-1]
		*node = Node{prior: prior, originalPrior: prior}
		return node
	}

	var block = p.blocks[len(p.blocks)-1]
	if p.next == len(block) {
		p.addBlock()
		block = p.blocks[len(p.blocks)-1]
	}
	var node = &block[p.next]
	p.next++
	*node = Node{prior: prior, originalPrior: prior}
	return node
}

// Free returns node to the pool for reuse. The caller must not touch node
// again afterward.
func (p *Pool) Free(node *Node) {
	p.allocated--
	node.children = nil
	node.bestChild = nil
	p.free = append(p.free, node)
}

// CurrentAllocations is the number of nodes handed out and not yet freed.
func (p *Pool) CurrentAllocations() int64 { return p.allocated }

// PruneExcept frees root and every descendant except the subtree rooted
// at the child reached by keep, returning that child (or nil if keep has
// no matching child, e.g. it was never visited) so the caller can adopt
// it as the new root.
func (p *Pool) PruneExcept(root *Node, keep Move) *Node {
	if root == nil {
		return nil
	}
	var kept = root.children[keep]
	for m, c := range root.children {
		if m != keep {
			p.PruneAll(c)
		}
	}
	root.children = nil
	p.Free(root)
	return kept
}

// PruneAll frees root and its entire subtree.
func (p *Pool) PruneAll(root *Node) {
	if root == nil {
		return
	}
	for _, c := range root.children {
		p.PruneAll(c)
	}
	root.children = nil
	p.Free(root)
}
