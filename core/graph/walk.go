package graph

// Memo remembers entities already removed, across convergence passes.
type Memo map[Ref]struct{}

func (m Memo) Has(r Ref) bool {
	_, ok := m[r]
	return ok
}

func (m Memo) Add(r Ref) { m[r] = struct{}{} }

// ParentQueue is a deduplicated FIFO of belongs-to targets found during a walk
// that still need their own cleanup pass.
type ParentQueue struct {
	refs []Ref
	seen map[Ref]bool
}

func NewParentQueue() *ParentQueue {
	return &ParentQueue{seen: make(map[Ref]bool)}
}

// Push enqueues r unless it was ever enqueued before.
func (q *ParentQueue) Push(r Ref) bool {
	if q.seen[r] {
		return false
	}
	q.seen[r] = true
	q.refs = append(q.refs, r)
	return true
}

// Pop removes and returns the oldest queued ref.
func (q *ParentQueue) Pop() (Ref, bool) {
	if len(q.refs) == 0 {
		return Ref{}, false
	}
	r := q.refs[0]
	q.refs = q.refs[1:]
	return r, true
}

func (q *ParentQueue) Len() int { return len(q.refs) }

// Walk is the state of one depth-first deletion pass. It is threaded through
// every recursive call instead of living on the deleter.
type Walk struct {
	stack   []Ref
	onStack map[Ref]bool
	memo    Memo

	Parents *ParentQueue
	// Left holds the parent objects DrainParents could not remove.
	Left    []Ref
	Removed int
	Failed  int
}

// NewWalk starts a pass. A nil memo starts with nothing processed.
func NewWalk(memo Memo) *Walk {
	if memo == nil {
		memo = make(Memo)
	}
	return &Walk{
		onStack: make(map[Ref]bool),
		memo:    memo,
		Parents: NewParentQueue(),
	}
}

func (w *Walk) push(r Ref) {
	w.stack = append(w.stack, r)
	w.onStack[r] = true
}

func (w *Walk) pop() {
	r := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	delete(w.onStack, r)
}

// Visiting reports whether r is on the current depth-first path.
func (w *Walk) Visiting(r Ref) bool { return w.onStack[r] }

// Depth is the length of the current path.
func (w *Walk) Depth() int { return len(w.stack) }

// Processed reports whether r was removed in this or an earlier pass.
func (w *Walk) Processed(r Ref) bool { return w.memo.Has(r) }
