package testsession

import "maps"

// AnswerMap maps question ids to the candidate's current answer. Last write wins.
// It is not safe for concurrent use; Session guards it with its own lock.
type AnswerMap struct {
	m map[int64]string
}

func NewAnswerMap() *AnswerMap {
	return &AnswerMap{m: make(map[int64]string)}
}

func (a *AnswerMap) Set(questionID int64, answer string) {
	a.m[questionID] = answer
}

func (a *AnswerMap) Get(questionID int64) (string, bool) {
	v, ok := a.m[questionID]
	return v, ok
}

func (a *AnswerMap) Len() int {
	return len(a.m)
}

// Snapshot returns a copy safe to hand to a request.
func (a *AnswerMap) Snapshot() map[int64]string {
	return maps.Clone(a.m)
}

// Navigator tracks the displayed question index, clamped to [0, count-1].
type Navigator struct {
	index int
	count int
}

func NewNavigator(count int) *Navigator {
	if count < 0 {
		count = 0
	}
	return &Navigator{count: count}
}

func (n *Navigator) Index() int { return n.index }
func (n *Navigator) Count() int { return n.count }

func (n *Navigator) Next() int {
	if n.index < n.count-1 {
		n.index++
	}
	return n.index
}

func (n *Navigator) Prev() int {
	if n.index > 0 {
		n.index--
	}
	return n.index
}

// Goto jumps to i, clamped into range.
func (n *Navigator) Goto(i int) int {
	switch {
	case n.count == 0 || i < 0:
		n.index = 0
	case i >= n.count:
		n.index = n.count - 1
	default:
		n.index = i
	}
	return n.index
}
