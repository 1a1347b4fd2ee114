package repository

import "math/rand/v2"

// ranking is a treap of each participant's best single-encounter damage.
//
// Ordering: damage DESC, then name ASC, so in-order traversal yields the
// ranking from best to worst. Priorities are random to keep the tree
// balanced in expectation.
type ranking struct {
	root *node
	best map[string]Entry
}

type node struct {
	name   string
	damage int64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func newRanking() *ranking {
	return &ranking{best: make(map[string]Entry)}
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aDamage, aName) ranks before (bDamage, bName).
func less(aDamage int64, aName string, bDamage int64, bName string) bool {
	if aDamage != bDamage {
		return aDamage > bDamage
	}
	return aName < bName
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, name string, damage int64) *node {
	if n == nil {
		return &node{name: name, damage: damage, prio: rand.Uint64(), size: 1}
	}
	if less(damage, name, n.damage, n.name) {
		n.left = insert(n.left, name, damage)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, name, damage)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, name string, damage int64) *node {
	if n == nil {
		return nil
	}
	switch {
	case damage == n.damage && name == n.name:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, name, damage)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, name, damage)
		}
	case less(damage, name, n.damage, n.name):
		n.left = deleteNode(n.left, name, damage)
	default:
		n.right = deleteNode(n.right, name, damage)
	}
	fix(n)
	return n
}

// offer records e if it beats the participant's current best.
func (r *ranking) offer(e Entry) bool {
	if e.Damage <= 0 || e.Name == "" {
		return false
	}
	if old, ok := r.best[e.Name]; ok {
		if e.Damage <= old.Damage {
			return false
		}
		r.root = deleteNode(r.root, old.Name, old.Damage)
	}
	r.best[e.Name] = e
	r.root = insert(r.root, e.Name, e.Damage)
	return true
}

// top returns up to limit entries in rank order.
func (r *ranking) top(limit int) []Entry {
	out := make([]Entry, 0, min(limit, len(r.best)))
	r.collect(r.root, limit, &out)
	AssignRanks(out)
	return out
}

func (r *ranking) collect(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	r.collect(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, r.best[n.name])
	}
	if len(*out) < limit {
		r.collect(n.right, limit, out)
	}
}
