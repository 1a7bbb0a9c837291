package axml

type nsDecl struct {
	prefix int
	uri    int
}

// namespaceStack keeps the live namespace declarations of every open
// element. decls holds them bottom frame first, counts the number of
// declarations per frame.
type namespaceStack struct {
	decls  []nsDecl
	counts []int
}

func (s *namespaceStack) reset() {
	s.decls = s.decls[:0]
	s.counts = s.counts[:0]
}

func (s *namespaceStack) depth() int {
	return len(s.counts)
}

func (s *namespaceStack) currentCount() int {
	if len(s.counts) == 0 {
		return 0
	}
	return s.counts[len(s.counts)-1]
}

// accumulatedCount sums the declarations of the lowest depth frames.
func (s *namespaceStack) accumulatedCount(depth int) int {
	if depth < 0 {
		return 0
	}
	if depth > len(s.counts) {
		depth = len(s.counts)
	}
	total := 0
	for _, c := range s.counts[:depth] {
		total += c
	}
	return total
}

func (s *namespaceStack) push(prefix, uri int) {
	if len(s.counts) == 0 {
		s.increaseDepth()
	}
	s.decls = append(s.decls, nsDecl{prefix: prefix, uri: uri})
	s.counts[len(s.counts)-1]++
}

func (s *namespaceStack) pop() bool {
	if s.currentCount() == 0 {
		return false
	}
	s.decls = s.decls[:len(s.decls)-1]
	s.counts[len(s.counts)-1]--
	return true
}

func (s *namespaceStack) increaseDepth() {
	s.counts = append(s.counts, 0)
}

// decreaseDepth drops the top frame with its declarations. The root frame
// is never dropped.
func (s *namespaceStack) decreaseDepth() {
	if len(s.counts) <= 1 {
		return
	}
	top := len(s.counts) - 1
	s.decls = s.decls[:len(s.decls)-s.counts[top]]
	s.counts = s.counts[:top]
}

// get returns the declaration at absolute position pos, counted from the
// bottom frame.
func (s *namespaceStack) get(pos int) (nsDecl, bool) {
	if pos < 0 || pos >= len(s.decls) {
		return nsDecl{prefix: -1, uri: -1}, false
	}
	return s.decls[pos], true
}

// findPrefix returns the prefix most recently bound to uri, or -1.
func (s *namespaceStack) findPrefix(uri int) int {
	for i := len(s.decls) - 1; i >= 0; i-- {
		if s.decls[i].uri == uri {
			return s.decls[i].prefix
		}
	}
	return -1
}
