package explore

// SeedQueue is a FIFO of words awaiting analysis. A word is accepted at
// most once per run.
type SeedQueue struct {
	words []uint32
	head  int
	seen  map[uint32]struct{}
}

func NewSeedQueue() *SeedQueue {
	return &SeedQueue{seen: make(map[uint32]struct{})}
}

// Push enqueues w unless it was pushed before. It reports whether w was
// added.
func (q *SeedQueue) Push(w uint32) bool {
	if _, ok := q.seen[w]; ok {
		return false
	}
	q.seen[w] = struct{}{}
	q.words = append(q.words, w)
	return true
}

// Pop removes the oldest word.
func (q *SeedQueue) Pop() (uint32, bool) {
	if q.head == len(q.words) {
		return 0, false
	}
	w := q.words[q.head]
	q.head++
	if q.head > 1024 && q.head*2 > len(q.words) {
		q.words = append([]uint32(nil), q.words[q.head:]...)
		q.head = 0
	}
	return w, true
}

func (q *SeedQueue) Len() int {
	return len(q.words) - q.head
}
