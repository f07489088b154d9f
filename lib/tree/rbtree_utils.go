package tree

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/benz9527/rbkv/lib/infra"
)

var (
	ErrRBTreeRootViolation  = errors.New("[rbtree] root violation")
	ErrRBTreeRedViolation   = errors.New("[rbtree] red violation")
	ErrRBTreeBlackViolation = errors.New("[rbtree] black violation")
	ErrRBTreeOrderViolation = errors.New("[rbtree] order violation")
	ErrRBTreeLinkViolation  = errors.New("[rbtree] parent link violation")
)

func isRedNode[K infra.OrderedKey, V comparable](node RBNode[K, V]) bool {
	return !node.IsNil() && node.Color() == Red
}

func blackDepthTo[K infra.OrderedKey, V comparable](target RBNode[K, V]) int {
	depth := 0
	for aux := target; !aux.IsNil(); aux = aux.Parent() {
		if !isRedNode[K, V](aux) {
			depth++
		}
	}
	return depth
}

// rbtree rule validation utilities.

// References:
// https://github1s.com/minghu6/rust-minghu6/blob/master/coll_st/src/bst/rb.rs

// inorder walks the real nodes by an explicit stack.
func inorder[K infra.OrderedKey, V comparable](tree RBMultiMap[K, V], action func(node RBNode[K, V]) error) error {
	stack := make([]RBNode[K, V], 0, 64)
	defer func() {
		clear(stack)
	}()

	for aux := tree.Root(); !aux.IsNil(); aux = aux.Left() {
		stack = append(stack, aux)
	}
	for size := len(stack); size > 0; size = len(stack) {
		aux := stack[size-1]
		stack = stack[:size-1]
		if err := action(aux); err != nil {
			return err
		}
		for aux = aux.Right(); !aux.IsNil(); aux = aux.Left() {
			stack = append(stack, aux)
		}
	}
	return nil
}

func RootViolationValidate[K infra.OrderedKey, V comparable](tree RBMultiMap[K, V]) error {
	root := tree.Root()
	if root.IsNil() {
		if tree.Len() != 0 {
			return fmt.Errorf("%w, empty root with %d nodes", ErrRBTreeRootViolation, tree.Len())
		}
		return nil
	}
	if root.Color() != Black {
		return fmt.Errorf("%w, red root key: %v", ErrRBTreeRootViolation, root.Key())
	}
	if p := root.Parent(); !p.IsNil() || p.Color() != Black {
		return fmt.Errorf("%w, root parent is not the black sentinel", ErrRBTreeRootViolation)
	}
	return nil
}

// Inorder traversal to validate no red node has a red child.
func RedViolationValidate[K infra.OrderedKey, V comparable](tree RBMultiMap[K, V]) error {
	return inorder[K, V](tree, func(node RBNode[K, V]) error {
		if isRedNode[K, V](node) && (isRedNode[K, V](node.Left()) || isRedNode[K, V](node.Right())) {
			return fmt.Errorf("%w, key: %v", ErrRBTreeRedViolation, node.Key())
		}
		return nil
	})
}

// BFS traversal to load every node owning at least one nil leaf.
func bfsLeaves[K infra.OrderedKey, V comparable](tree RBMultiMap[K, V]) []RBNode[K, V] {
	aux := tree.Root()
	if aux.IsNil() {
		return nil
	}

	leaves := make([]RBNode[K, V], 0, tree.Len()>>1+1)
	queue := make([]RBNode[K, V], 0, tree.Len()>>1+1)
	defer func() {
		clear(queue)
	}()
	queue = append(queue, aux)

	for len(queue) > 0 {
		aux = queue[0]
		l, r := aux.Left(), aux.Right()
		if /* nil leaves, keep one */ l.IsNil() || r.IsNil() {
			leaves = append(leaves, aux)
		}
		if !l.IsNil() {
			queue = append(queue, l)
		}
		if !r.IsNil() {
			queue = append(queue, r)
		}
		queue = queue[1:]
	}
	return leaves
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).

	        [13]
			/  \
		 <8>    [15]
		 / \    /  \
	  [6] [11] [14] [17]
	  /              /
	<1>            [16]

Each leaf node to root node black depth are equal.
*/
func BlackViolationValidate[K infra.OrderedKey, V comparable](tree RBMultiMap[K, V]) error {
	leaves := bfsLeaves[K, V](tree)
	if leaves == nil {
		return nil
	}

	blackDepth := blackDepthTo[K, V](leaves[0])
	for i := 1; i < len(leaves); i++ {
		if d := blackDepthTo[K, V](leaves[i]); d != blackDepth {
			return fmt.Errorf("%w, key: %v, black depth %d != %d",
				ErrRBTreeBlackViolation, leaves[i].Key(), d, blackDepth)
		}
	}
	return nil
}

// OrderViolationValidate checks the inorder keys are non-decreasing by kcmp.
// The ascending comparator is used if kcmp is absent.
func OrderViolationValidate[K infra.OrderedKey, V comparable](tree RBMultiMap[K, V], kcmp ...infra.OrderedKeyComparator[K]) error {
	cmp := infra.AscKeyComparator[K]
	if len(kcmp) > 0 && kcmp[0] != nil {
		cmp = kcmp[0]
	}

	var (
		prev    K
		hasPrev bool
		count   int64
	)
	err := inorder[K, V](tree, func(node RBNode[K, V]) error {
		count++
		if hasPrev && cmp(prev, node.Key()) > 0 {
			return fmt.Errorf("%w, key %v before %v", ErrRBTreeOrderViolation, prev, node.Key())
		}
		prev, hasPrev = node.Key(), true
		return nil
	})
	if err != nil {
		return err
	}
	if count != tree.Len() {
		return fmt.Errorf("%w, walked %d nodes, expected %d", ErrRBTreeOrderViolation, count, tree.Len())
	}
	return nil
}

// LinkViolationValidate checks every child points back to its parent.
func LinkViolationValidate[K infra.OrderedKey, V comparable](tree RBMultiMap[K, V]) error {
	return inorder[K, V](tree, func(node RBNode[K, V]) error {
		for _, child := range []RBNode[K, V]{node.Left(), node.Right()} {
			if !child.IsNil() && child.Parent() != node {
				return fmt.Errorf("%w, key: %v, child key: %v", ErrRBTreeLinkViolation, node.Key(), child.Key())
			}
		}
		return nil
	})
}

// Validate runs all the rule validations and combines the violations.
func Validate[K infra.OrderedKey, V comparable](tree RBMultiMap[K, V], kcmp ...infra.OrderedKeyComparator[K]) error {
	return multierr.Combine(
		RootViolationValidate[K, V](tree),
		RedViolationValidate[K, V](tree),
		BlackViolationValidate[K, V](tree),
		OrderViolationValidate[K, V](tree, kcmp...),
		LinkViolationValidate[K, V](tree),
	)
}
