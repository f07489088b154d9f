package tree

import (
	"errors"
	"iter"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/benz9527/rbkv/lib/infra"
)

var (
	ErrRBTreeIsFull = errors.New("[rbtree] no free slot for a new node")
)

var _ RBMultiMap[string, string] = (*rbTree[string, string])(nil)

type rbNodeView[K infra.OrderedKey, V comparable] struct {
	tree *rbTree[K, V]
	idx  nodeIdx
}

func (v rbNodeView[K, V]) Key() K               { return v.tree.node(v.idx).key }
func (v rbNodeView[K, V]) Val() V               { return v.tree.node(v.idx).val }
func (v rbNodeView[K, V]) Color() RBColor       { return v.tree.node(v.idx).color }
func (v rbNodeView[K, V]) IsNil() bool          { return v.idx == nilIdx }
func (v rbNodeView[K, V]) Left() RBNode[K, V]   { return v.tree.view(v.tree.node(v.idx).left) }
func (v rbNodeView[K, V]) Right() RBNode[K, V]  { return v.tree.view(v.tree.node(v.idx).right) }
func (v rbNodeView[K, V]) Parent() RBNode[K, V] { return v.tree.view(v.tree.node(v.idx).parent) }

type rbTree[K infra.OrderedKey, V comparable] struct {
	arena  *rbArena[K, V]
	kcmp   infra.OrderedKeyComparator[K]
	root   nodeIdx
	count  int64
	isDesc bool
}

func (tree *rbTree[K, V]) node(idx nodeIdx) *rbNode[K, V] {
	return tree.arena.slot(idx)
}

func (tree *rbTree[K, V]) view(idx nodeIdx) RBNode[K, V] {
	return rbNodeView[K, V]{tree: tree, idx: idx}
}

func (tree *rbTree[K, V]) isRed(idx nodeIdx) bool {
	return idx != nilIdx && tree.node(idx).color == Red
}

func (tree *rbTree[K, V]) isBlack(idx nodeIdx) bool {
	return !tree.isRed(idx)
}

func (tree *rbTree[K, V]) direction(idx nodeIdx) RBDirection {
	if idx == nilIdx {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] nil leaf node without direction")
	}

	p := tree.node(idx).parent
	if p == nilIdx {
		return Root
	}
	if idx == tree.node(p).left {
		return Left
	}
	return Right
}

// child returns the child of p on the dir side.
func (tree *rbTree[K, V]) child(p nodeIdx, dir RBDirection) nodeIdx {
	switch dir {
	case Left:
		return tree.node(p).left
	case Right:
		return tree.node(p).right
	default:
	}
	// impossible run to here
	panic( /* debug assertion */ "[rbtree] unknown child direction")
}

func (tree *rbTree[K, V]) sibling(idx nodeIdx) nodeIdx {
	return tree.child(tree.node(idx).parent, -tree.direction(idx))
}

func (tree *rbTree[K, V]) minimum(idx nodeIdx) nodeIdx {
	for idx != nilIdx && tree.node(idx).left != nilIdx {
		idx = tree.node(idx).left
	}
	return idx
}

func (tree *rbTree[K, V]) maximum(idx nodeIdx) nodeIdx {
	for idx != nilIdx && tree.node(idx).right != nilIdx {
		idx = tree.node(idx).right
	}
	return idx
}

// The pred node of the current node is its previous node in sorted order.
func (tree *rbTree[K, V]) pred(x nodeIdx) nodeIdx {
	if x == nilIdx {
		return nilIdx
	}
	if l := tree.node(x).left; l != nilIdx {
		return tree.maximum(l)
	}

	aux := tree.node(x).parent
	// Backtrack to father node that is the x's pred.
	for aux != nilIdx && x == tree.node(aux).left {
		x = aux
		aux = tree.node(aux).parent
	}
	return aux
}

// The succ node of the current node is its next node in sorted order.
func (tree *rbTree[K, V]) succ(x nodeIdx) nodeIdx {
	if x == nilIdx {
		return nilIdx
	}
	if r := tree.node(x).right; r != nilIdx {
		return tree.minimum(r)
	}

	aux := tree.node(x).parent
	// Backtrack to father node that is the x's succ.
	for aux != nilIdx && x == tree.node(aux).right {
		x = aux
		aux = tree.node(aux).parent
	}
	return aux
}

func (tree *rbTree[K, V]) Len() int64 {
	return atomic.LoadInt64(&tree.count)
}

func (tree *rbTree[K, V]) Root() RBNode[K, V] {
	return tree.view(tree.root)
}

// References:
// https://elixir.bootlin.com/linux/latest/source/lib/rbtree.c
// rbtree properties:
// https://en.wikipedia.org/wiki/Red%E2%80%93black_tree#Properties
// p1. Every node is either red or black.
// p2. All NIL nodes are considered black.
// p3. A red node does not have a red child. (red-violation)
// p4. Every path from a given node to any of its descendant
//   NIL nodes goes through the same number of black nodes. (black-violation)
// p5. The root is black.
// All NIL nodes are the one sentinel slot, it is never written after
// the arena is built.

/*
		 |                         |
		 X                         S
		/ \     leftRotate(X)     / \
	   L   S    ============>    X   Sd
		  / \                   / \
		Sc   Sd                L   Sc
*/
func (tree *rbTree[K, V]) leftRotate(x nodeIdx) {
	if x == nilIdx || tree.node(x).right == nilIdx {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] left rotate node x is nil or x.right is nil")
	}

	xn := tree.node(x)
	y := xn.right
	yn := tree.node(y)
	xn.right = yn.left
	if yn.left != nilIdx {
		tree.node(yn.left).parent = x
	}
	tree.replaceChild(xn.parent, x, y)
	yn.left = x
	xn.parent = y
}

/*
			 |                         |
			 X                         S
			/ \     rightRotate(S)    / \
	       L   S    <============    X   R
			  / \                   / \
			Sc   Sd               Sc   Sd
*/
func (tree *rbTree[K, V]) rightRotate(x nodeIdx) {
	if x == nilIdx || tree.node(x).left == nilIdx {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] right rotate node x is nil or x.left is nil")
	}

	xn := tree.node(x)
	y := xn.left
	yn := tree.node(y)
	xn.left = yn.right
	if yn.right != nilIdx {
		tree.node(yn.right).parent = x
	}
	tree.replaceChild(xn.parent, x, y)
	yn.right = x
	xn.parent = y
}

// rotateToward rotates x so that x moves down to the dir side.
func (tree *rbTree[K, V]) rotateToward(x nodeIdx, dir RBDirection) {
	switch dir {
	case Left:
		tree.leftRotate(x)
	case Right:
		tree.rightRotate(x)
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to rotate")
	}
}

// replaceChild links v to p in the slot held by u.
// v's parent is updated unless v is the sentinel.
func (tree *rbTree[K, V]) replaceChild(p, u, v nodeIdx) {
	if p == nilIdx {
		tree.root = v
	} else if pn := tree.node(p); u == pn.left {
		pn.left = v
	} else {
		pn.right = v
	}
	if v != nilIdx {
		tree.node(v).parent = p
	}
}

// transplant replaces the subtree rooted at u with the one rooted at v.
func (tree *rbTree[K, V]) transplant(u, v nodeIdx) {
	tree.replaceChild(tree.node(u).parent, u, v)
}

func (tree *rbTree[K, V]) search(key K) nodeIdx {
	for aux := tree.root; aux != nilIdx; {
		res := tree.kcmp(key, tree.node(aux).key)
		if res == 0 {
			return aux
		} else if res > 0 {
			aux = tree.node(aux).right
		} else {
			aux = tree.node(aux).left
		}
	}
	return nilIdx
}

// i1: Empty rbtree, the new node becomes the root and is painted to black.
// Equal keys go right, so the duplicates of a key stay contiguous in order.
func (tree *rbTree[K, V]) Insert(key K, val V) error {
	z, ok := tree.arena.allocate()
	if !ok {
		return ErrRBTreeIsFull
	}

	var x, y nodeIdx = tree.root, nilIdx
	for x != nilIdx {
		y = x
		if /* less */ tree.kcmp(key, tree.node(x).key) < 0 {
			x = tree.node(x).left
		} else /* greater or equal */ {
			x = tree.node(x).right
		}
	}

	zn := tree.node(z)
	zn.key, zn.val = key, val
	zn.parent, zn.left, zn.right = y, nilIdx, nilIdx
	zn.color = Red
	if /* i1 */ y == nilIdx {
		tree.root = z
	} else if tree.kcmp(key, tree.node(y).key) < 0 {
		tree.node(y).left = z
	} else {
		tree.node(y).right = z
	}

	atomic.AddInt64(&tree.count, 1)
	tree.insertRebalance(z)
	return nil
}

/*
New node X is red by default.

<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

im1: Current node X's parent P is black, nothing to do.

im2: X is the root, repaint it into black (done after the loop).

im3: If both the parent P and the uncle U are red, grandpa G is black.
(red-violation)
After repainted G into red may be still red-violation.
Recursive to fix grandpa.

	    [G]             <G>
	    / \             / \
	  <P> <U>  ====>  [P] [U]
	  /               /
	<X>             <X>

im4: The parent P is red but the uncle U is black. (red-violation)
X is opposite direction to P. Rotate P to opposite direction.
After rotation it is still red-violation. Here must enter im5 to fix.

	  [G]                 [G]
	  / \    rotate(P)    / \
	<P> [U]  ========>  <X> [U]
	  \                 /
	  <X>             <P>

im5: Handle im4 scenario, current node is the same direction as parent.

	    [G]                 <P>               [P]
	    / \    rotate(G)    / \    repaint    / \
	  <P> [U]  ========>  <X> [G]  ======>  <X> <G>
	  /                         \                 \
	<X>                         [U]               [U]
*/
func (tree *rbTree[K, V]) insertRebalance(x nodeIdx) {
	for /* im1 */ tree.isRed(tree.node(x).parent) {
		p := tree.node(x).parent
		gp := tree.node(p).parent
		if gp == nilIdx {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] red root node, insert violate (im3)")
		}

		if /* im3 */ u := tree.sibling(p); tree.isRed(u) {
			tree.node(p).color = Black
			tree.node(u).color = Black
			tree.node(gp).color = Red
			x = gp
			continue
		}

		pdir := tree.direction(p)
		if /* im4 */ tree.direction(x) != pdir {
			tree.rotateToward(p, pdir)
			x, p = p, x // enter im5 to fix
		}

		/* im5 */
		tree.node(p).color = Black
		tree.node(gp).color = Red
		tree.rotateToward(gp, -pdir)
	}
	/* im2 */
	tree.node(tree.root).color = Black
}

/*
r1: Z has no left child, its right child (may be NIL) takes its place.

r2: Z has no right child, its left child takes its place.

r3: Z has both children. Its succ Y (the minimum of the right subtree)
is relocated into Z's place and takes over Z's color. The node is moved,
the key and value are never copied, so other slots stay valid.

	  |                    |
	  Z                    Y
	 / \                  / \
	L   R    move(Y)     L   R
	   / \  =========>      / \
	  Y  ..                X  ..
	   \
	    X

If the color physically removed from the tree (Z in r1 and r2, the
original color of Y in r3) is black, X carries an extra black and we
have to rebalance. X may be the sentinel, so its parent is tracked
aside instead of written into the sentinel.
*/
func (tree *rbTree[K, V]) removeNode(z nodeIdx) {
	zn := tree.node(z)
	removedColor := zn.color
	var x, xp nodeIdx

	if /* r1 */ zn.left == nilIdx {
		x, xp = zn.right, zn.parent
		tree.transplant(z, x)
	} else if /* r2 */ zn.right == nilIdx {
		x, xp = zn.left, zn.parent
		tree.transplant(z, x)
	} else /* r3 */ {
		y := tree.minimum(zn.right)
		yn := tree.node(y)
		removedColor = yn.color
		x = yn.right
		if yn.parent == z {
			xp = y
		} else {
			xp = yn.parent
			tree.transplant(y, x)
			yn.right = zn.right
			tree.node(yn.right).parent = y
		}
		tree.transplant(z, y)
		yn.left = zn.left
		tree.node(yn.left).parent = y
		yn.color = zn.color
	}

	if removedColor == Black {
		tree.removeRebalance(x, xp)
	}
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

Sc is the same direction to X and it X's sibling's child node.
Sd is the opposite direction to X and it X's sibling's child node.

rm1: Current node X's sibling S is red, so the parent P, nephew node Sc and Sd
must be black. (Otherwise, red-violation)
(1) repaint S into black, P into red.
(2) rotate P toward X, then the new sibling is black.

	  [P]                   <S>               [S]
	  / \    l-rotate(P)    / \    repaint    / \
	[X] <S>  ==========>  [P] [D]  ======>  <P> [Sd]
	    / \               / \               / \
	 [Sc] [Sd]          [X] [Sc]          [X] [Sc]

rm2: The sibling S, nephew node Sc and Sd are black.
Paint S into red to satisfy p4 locally, the extra black moves up to P.
If P is red, it absorbs the extra black (painted black after the loop).
Otherwise, recursive to handle P.

	  {P}             {P}
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	 [Sc] [Sd]       [Sc] [Sd]

rm3: Current node X's sibling S is black, nephew node Sc is red and Sd
is black. Ignore X's parent P's color (red or black is okay)
(1) Repaint S into red, Sc into black
(2) rotate S away from X.
Enter into rm4 to fix.

	                        {P}                {P}
	  {P}                   / \                / \
	  / \    r-rotate(S)  [X] <Sc>   repaint  [X] [Sc]
	[X] [S]  ==========>        \    ======>       \
	    / \                     [S]                <S>
	  <Sc> [Sd]                   \                  \
	                              [Sd]               [Sd]

rm4: Current node X's sibling S is black and Sd is red.
Ignore X's parent P's color (red or black is okay)
(1) S takes P's color, P and Sd are painted black.
(2) rotate P toward X. The extra black is absorbed, stop.

	  {P}                   {S}
	  / \    l-rotate(P)    / \
	[X] [S]  ==========>  [P] [Sd]
	    / \               / \
	 [Sc] <Sd>          [X] [Sc]
*/
func (tree *rbTree[K, V]) removeRebalance(x, xp nodeIdx) {
	for x != tree.root && tree.isBlack(x) {
		dir := Right
		if x == tree.node(xp).left {
			dir = Left
		}

		s := tree.child(xp, -dir)
		if /* rm1 */ tree.isRed(s) {
			tree.node(s).color = Black
			tree.node(xp).color = Red
			tree.rotateToward(xp, dir)
			s = tree.child(xp, -dir)
		}
		if s == nilIdx {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] black node without sibling, remove violate (rm2)")
		}

		sc, sd := tree.child(s, dir), tree.child(s, -dir)
		if /* rm2 */ tree.isBlack(sc) && tree.isBlack(sd) {
			tree.node(s).color = Red
			x = xp
			xp = tree.node(x).parent
			continue
		}

		if /* rm3 */ tree.isBlack(sd) {
			tree.node(sc).color = Black
			tree.node(s).color = Red
			tree.rotateToward(s, -dir)
			s = tree.child(xp, -dir)
			sd = tree.child(s, -dir)
		}

		/* rm4 */
		tree.node(s).color = tree.node(xp).color
		tree.node(xp).color = Black
		tree.node(sd).color = Black
		tree.rotateToward(xp, dir)
		x = tree.root
	}
	if x != nilIdx {
		tree.node(x).color = Black
	}
}

// run returns every slot of the key's duplicate run in in-order layout.
func (tree *rbTree[K, V]) run(key K) []nodeIdx {
	x := tree.search(key)
	if x == nilIdx {
		return nil
	}

	first := x
	for aux := tree.pred(first); aux != nilIdx && tree.kcmp(key, tree.node(aux).key) == 0; aux = tree.pred(aux) {
		first = aux
	}
	res := make([]nodeIdx, 0, 4)
	for aux := first; aux != nilIdx && tree.kcmp(key, tree.node(aux).key) == 0; aux = tree.succ(aux) {
		res = append(res, aux)
	}
	return res
}

func (tree *rbTree[K, V]) FindAll(key K) []V {
	return lo.Map(tree.run(key), func(idx nodeIdx, _ int) V {
		return tree.node(idx).val
	})
}

func (tree *rbTree[K, V]) Contains(key K) bool {
	return tree.search(key) != nilIdx
}

func (tree *rbTree[K, V]) DeleteAll(key K, val V) int {
	targets := lo.Filter(tree.run(key), func(idx nodeIdx, _ int) bool {
		return tree.node(idx).val == val
	})
	for _, z := range targets {
		tree.removeNode(z)
		tree.arena.recycle(z)
		atomic.AddInt64(&tree.count, -1)
	}
	return len(targets)
}

// Inorder traversal to implement the DFS.
func (tree *rbTree[K, V]) Foreach(action func(idx int64, color RBColor, key K, val V) bool) {
	stack := make([]nodeIdx, 0, 64)
	defer func() {
		clear(stack)
	}()

	for aux := tree.root; aux != nilIdx; aux = tree.node(aux).left {
		stack = append(stack, aux)
	}

	idx := int64(0)
	for size := len(stack); size > 0; size = len(stack) {
		aux := stack[size-1]
		stack = stack[:size-1]
		n := tree.node(aux)
		r := n.right
		if !action(idx, n.color, n.key, n.val) {
			return
		}
		idx++
		for aux = r; aux != nilIdx; aux = tree.node(aux).left {
			stack = append(stack, aux)
		}
	}
}

// Traverse is the reverse inorder traversal, the right subtree first.
// Every call starts a new walk from the root.
func (tree *rbTree[K, V]) Traverse() iter.Seq[TraverseItem[K, V]] {
	type frame struct {
		idx   nodeIdx
		depth int
	}
	return func(yield func(TraverseItem[K, V]) bool) {
		stack := make([]frame, 0, 64)
		push := func(aux nodeIdx, depth int) {
			for ; aux != nilIdx; aux, depth = tree.node(aux).right, depth+1 {
				stack = append(stack, frame{idx: aux, depth: depth})
			}
		}

		push(tree.root, 0)
		for size := len(stack); size > 0; size = len(stack) {
			top := stack[size-1]
			stack = stack[:size-1]
			n := tree.node(top.idx)
			l := n.left
			if !yield(TraverseItem[K, V]{
				Key:   n.key,
				Val:   n.val,
				Depth: top.depth,
				Color: n.color,
			}) {
				return
			}
			push(l, top.depth+1)
		}
	}
}

func (tree *rbTree[K, V]) Release() {
	tree.arena.reset()
	tree.root = nilIdx
	atomic.StoreInt64(&tree.count, 0)
}

type RBMultiMapOption[K infra.OrderedKey, V comparable] func(*rbTree[K, V])

// WithRBMultiMapDesc orders the keys from the largest to the smallest.
func WithRBMultiMapDesc[K infra.OrderedKey, V comparable]() RBMultiMapOption[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.isDesc = true
	}
}

// WithRBMultiMapInitCap preallocates the node slots.
func WithRBMultiMapInitCap[K infra.OrderedKey, V comparable](n uint32) RBMultiMapOption[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.arena = newRBArena[K, V](n)
	}
}

func newRBTree[K infra.OrderedKey, V comparable](opts ...RBMultiMapOption[K, V]) *rbTree[K, V] {
	tree := &rbTree[K, V]{
		root:   nilIdx,
		count:  0,
		isDesc: false,
	}

	for _, o := range opts {
		o(tree)
	}
	if tree.arena == nil {
		tree.arena = newRBArena[K, V](64)
	}
	tree.kcmp = infra.AscKeyComparator[K]
	if tree.isDesc {
		tree.kcmp = infra.DescKeyComparator[K]
	}
	return tree
}

func NewRBMultiMap[K infra.OrderedKey, V comparable](opts ...RBMultiMapOption[K, V]) RBMultiMap[K, V] {
	return newRBTree[K, V](opts...)
}
