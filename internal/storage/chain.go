package storage

// node is one link of the chain: qset slots, each optionally holding a quantum.
type node struct {
	data [][]byte
	next *node
}

// follow returns the node at index item, linking in every missing node on
// the way. Nodes linked before an allocation failure stay in the chain.
func (s *Store) follow(item int64) (*node, error) {
	if s.head == nil {
		n, err := s.allocNode()
		if err != nil {
			return nil, err
		}
		s.head = n
	}

	cur := s.head
	for ; item > 0; item-- {
		if cur.next == nil {
			n, err := s.allocNode()
			if err != nil {
				return nil, err
			}
			cur.next = n
		}
		cur = cur.next
	}
	return cur, nil
}

// lookup is follow without allocation; it returns nil past the end of the chain.
func (s *Store) lookup(item int64) *node {
	cur := s.head
	for ; cur != nil && item > 0; item-- {
		cur = cur.next
	}
	return cur
}

// trim drops every node. The successor is read before a node is freed.
func (s *Store) trim() {
	var next *node
	for cur := s.head; cur != nil; cur = next {
		next = cur.next
		cur.next = nil
		s.freeNode(cur)
	}
	s.head = nil
	s.size = 0
}
