package orderbook

type color bool

const (
	red   color = false
	black color = true
)

type treeNode struct {
	price  Price
	level  *PriceLevel
	color  color
	left   *treeNode
	right  *treeNode
	parent *treeNode
}

// priceTree is a red-black tree of price levels keyed by price. A shared
// black sentinel stands in for every leaf.
type priceTree struct {
	root  *treeNode
	leaf  *treeNode
	count int
}

func newPriceTree() *priceTree {
	leaf := &treeNode{color: black}
	return &priceTree{root: leaf, leaf: leaf}
}

func (t *priceTree) Len() int { return t.count }

func (t *priceTree) Find(p Price) *PriceLevel {
	if n := t.search(p); n != t.leaf {
		return n.level
	}
	return nil
}

// Upsert returns the level at p, creating an empty one if needed.
func (t *priceTree) Upsert(p Price) *PriceLevel {
	parent := t.leaf
	for n := t.root; n != t.leaf; {
		parent = n
		switch {
		case p < n.price:
			n = n.left
		case p > n.price:
			n = n.right
		default:
			return n.level
		}
	}

	z := &treeNode{
		price:  p,
		level:  newPriceLevel(p),
		color:  red,
		left:   t.leaf,
		right:  t.leaf,
		parent: parent,
	}
	switch {
	case parent == t.leaf:
		t.root = z
	case p < parent.price:
		parent.left = z
	default:
		parent.right = z
	}
	t.insertFixup(z)
	t.count++
	return z.level
}

func (t *priceTree) Delete(p Price) bool {
	z := t.search(p)
	if z == t.leaf {
		return false
	}
	t.deleteNode(z)
	t.count--
	return true
}

func (t *priceTree) Min() *PriceLevel {
	if n := t.minNode(t.root); n != t.leaf {
		return n.level
	}
	return nil
}

func (t *priceTree) Max() *PriceLevel {
	if n := t.maxNode(t.root); n != t.leaf {
		return n.level
	}
	return nil
}

// Ascend visits levels from the lowest price until fn returns false.
func (t *priceTree) Ascend(fn func(*PriceLevel) bool) {
	for n := t.minNode(t.root); n != t.leaf; n = t.successor(n) {
		if !fn(n.level) {
			return
		}
	}
}

// Descend visits levels from the highest price until fn returns false.
func (t *priceTree) Descend(fn func(*PriceLevel) bool) {
	for n := t.maxNode(t.root); n != t.leaf; n = t.predecessor(n) {
		if !fn(n.level) {
			return
		}
	}
}

// ---- internals ----

func (t *priceTree) search(p Price) *treeNode {
	n := t.root
	for n != t.leaf && n.price != p {
		if p < n.price {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n
}

func (t *priceTree) minNode(n *treeNode) *treeNode {
	if n == t.leaf {
		return n
	}
	for n.left != t.leaf {
		n = n.left
	}
	return n
}

func (t *priceTree) maxNode(n *treeNode) *treeNode {
	if n == t.leaf {
		return n
	}
	for n.right != t.leaf {
		n = n.right
	}
	return n
}

func (t *priceTree) successor(n *treeNode) *treeNode {
	if n.right != t.leaf {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.leaf && n == p.right {
		n, p = p, p.parent
	}
	return p
}

func (t *priceTree) predecessor(n *treeNode) *treeNode {
	if n.left != t.leaf {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.leaf && n == p.left {
		n, p = p, p.parent
	}
	return p
}

func (t *priceTree) rotateLeft(x *treeNode) {
	y := x.right
	x.right = y.left
	if y.left != t.leaf {
		y.left.parent = x
	}
	t.replaceChild(x, y)
	y.left = x
	x.parent = y
}

func (t *priceTree) rotateRight(x *treeNode) {
	y := x.left
	x.left = y.right
	if y.right != t.leaf {
		y.right.parent = x
	}
	t.replaceChild(x, y)
	y.right = x
	x.parent = y
}

// replaceChild hangs v where u used to hang under u's parent.
func (t *priceTree) replaceChild(u, v *treeNode) {
	switch {
	case u.parent == t.leaf:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *priceTree) insertFixup(z *treeNode) {
	for z.parent.color == red {
		gp := z.parent.parent
		if z.parent == gp.left {
			uncle := gp.right
			if uncle.color == red {
				z.parent.color, uncle.color, gp.color = black, black, red
				z = gp
				continue
			}
			if z == z.parent.right {
				z = z.parent
				t.rotateLeft(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rotateRight(z.parent.parent)
		} else {
			uncle := gp.left
			if uncle.color == red {
				z.parent.color, uncle.color, gp.color = black, black, red
				z = gp
				continue
			}
			if z == z.parent.left {
				z = z.parent
				t.rotateRight(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rotateLeft(z.parent.parent)
		}
	}
	t.root.color = black
}

func (t *priceTree) deleteNode(z *treeNode) {
	y := z
	removed := y.color
	var x *treeNode

	switch {
	case z.left == t.leaf:
		x = z.right
		t.replaceChild(z, z.right)
	case z.right == t.leaf:
		x = z.left
		t.replaceChild(z, z.left)
	default:
		y = t.minNode(z.right)
		removed = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.replaceChild(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.replaceChild(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if removed == black {
		t.deleteFixup(x)
	}
	// the sentinel's parent is scratch space during fixup
	t.leaf.parent = nil
}

func (t *priceTree) deleteFixup(x *treeNode) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rotateLeft(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.right.color == black {
				w.left.color = black
				w.color = red
				t.rotateRight(w)
				w = x.parent.right
			}
			w.color = x.parent.color
			x.parent.color = black
			w.right.color = black
			t.rotateLeft(x.parent)
			x = t.root
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rotateRight(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.left.color == black {
				w.right.color = black
				w.color = red
				t.rotateLeft(w)
				w = x.parent.left
			}
			w.color = x.parent.color
			x.parent.color = black
			w.left.color = black
			t.rotateRight(x.parent)
			x = t.root
		}
	}
	x.color = black
}
