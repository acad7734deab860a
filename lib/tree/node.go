package tree

import (
	"runtime"
	"weak"

	"github.com/benz9527/xtree/lib/infra"
)

var _ ConstNode[int] = constNode[int]{}

// Node is a binary tree vertex. It owns its children and refers to its
// parent through a weak pointer, so a parent is reclaimed as soon as
// nothing but its children's back-references points at it.
//
// A tree is just a reference to its root node. Nodes are built only by
// CreateLeaf and Fork. A single tree must not be mutated from several
// goroutines without external synchronization.
type Node[T any] struct {
	parent weak.Pointer[Node[T]]
	left   *Node[T]
	right  *Node[T]
	value  T
}

func newNode[T any](value T) *Node[T] {
	node := &Node[T]{value: value}
	if obs := loadObserver(); obs != nil {
		obs.NodeCreated()
		runtime.AddCleanup(node, func(o Observer) { o.NodeReclaimed() }, obs)
	}
	return node
}

// CreateLeaf builds a node without children and without parent.
func CreateLeaf[T any](value T) *Node[T] {
	return newNode(value)
}

// Fork builds a node owning left and right, either of which may be nil.
// The children must be unattached roots: passing a node that still has a
// live parent, or the same node twice, is rejected with
// ErrInvalidAttachment and nothing is modified. Use Detach first to move
// an attached subtree.
func Fork[T any](value T, left, right *Node[T]) (*Node[T], error) {
	if left != nil && left == right {
		return nil, infra.WrapErrorStackWithMessage(ErrInvalidAttachment, "fork with the same node on both sides")
	}
	if left.HasParent() {
		return nil, infra.WrapErrorStackWithMessage(ErrInvalidAttachment, "fork left node is already attached")
	}
	if right.HasParent() {
		return nil, infra.WrapErrorStackWithMessage(ErrInvalidAttachment, "fork right node is already attached")
	}

	node := newNode(value)
	node.left, node.right = left, right
	self := weak.Make(node)
	for _, child := range [...]*Node[T]{left, right} {
		if child != nil {
			child.parent = self
			notifyAttached()
		}
	}
	return node, nil
}

func (node *Node[T]) HasLeft() bool {
	return node != nil && node.left != nil
}

func (node *Node[T]) HasRight() bool {
	return node != nil && node.right != nil
}

// HasParent reports whether the parent is still alive. A parent that has
// been reclaimed reads as absent.
func (node *Node[T]) HasParent() bool {
	return node != nil && node.parent.Value() != nil
}

func (node *Node[T]) Value() T {
	return node.value
}

// ValuePtr exposes the payload for in-place mutation.
func (node *Node[T]) ValuePtr() *T {
	return &node.value
}

func (node *Node[T]) SetValue(value T) {
	node.value = value
}

// Left returns the left child without detaching it.
func (node *Node[T]) Left() *Node[T] {
	if node == nil {
		return nil
	}
	return node.left
}

// Right returns the right child without detaching it.
func (node *Node[T]) Right() *Node[T] {
	if node == nil {
		return nil
	}
	return node.right
}

// Parent resolves the back-reference. The returned pointer keeps the parent
// alive only while the caller holds it.
func (node *Node[T]) Parent() *Node[T] {
	if node == nil {
		return nil
	}
	return node.parent.Value()
}

func (node *Node[T]) Direction() Direction {
	parent := node.Parent()
	switch {
	case parent == nil:
		return Root
	case parent.left == node:
		return Left
	default:
	}
	return Right
}

// ReplaceLeft installs child as the left subtree and returns the previous
// left subtree as an unattached root, or nil if the slot was empty.
// A nil child just removes the left subtree. Replacing the left child with
// itself changes nothing and returns nil.
// The child must be an unattached root that is neither node nor one of
// its ancestors, otherwise ErrInvalidAttachment is returned.
func (node *Node[T]) ReplaceLeft(child *Node[T]) (*Node[T], error) {
	return node.replace(&node.left, child)
}

// ReplaceRight is the mirror of ReplaceLeft.
func (node *Node[T]) ReplaceRight(child *Node[T]) (*Node[T], error) {
	return node.replace(&node.right, child)
}

func (node *Node[T]) ReplaceLeftWithLeaf(value T) *Node[T] {
	prev, _ := node.replace(&node.left, CreateLeaf(value))
	return prev
}

func (node *Node[T]) ReplaceRightWithLeaf(value T) *Node[T] {
	prev, _ := node.replace(&node.right, CreateLeaf(value))
	return prev
}

// RemoveLeft detaches the left subtree and hands it to the caller.
func (node *Node[T]) RemoveLeft() *Node[T] {
	prev, _ := node.replace(&node.left, nil)
	return prev
}

// RemoveRight detaches the right subtree and hands it to the caller.
func (node *Node[T]) RemoveRight() *Node[T] {
	prev, _ := node.replace(&node.right, nil)
	return prev
}

// Detach cuts node loose from its parent, whichever slot holds it, and
// returns it as an unattached root. A root is returned as is.
func (node *Node[T]) Detach() *Node[T] {
	parent := node.Parent()
	switch {
	case parent == nil:
	case parent.left == node:
		parent.RemoveLeft()
	case parent.right == node:
		parent.RemoveRight()
	default:
		// The back-reference is stale, the parent no longer owns node.
		node.parent = weak.Pointer[Node[T]]{}
	}
	return node
}

// ReadOnly returns a view of node that cannot be used to mutate the tree.
func (node *Node[T]) ReadOnly() ConstNode[T] {
	if node == nil {
		return nil
	}
	return constNode[T]{node: node}
}

func (node *Node[T]) isSelfOrDescendantOf(other *Node[T]) bool {
	for aux := node; aux != nil; aux = aux.Parent() {
		if aux == other {
			return true
		}
	}
	return false
}

// The incoming child gets its back-reference before the outgoing one is
// cleared and the slot is overwritten.
func (node *Node[T]) replace(slot **Node[T], child *Node[T]) (*Node[T], error) {
	prev := *slot
	if child != nil {
		if child == prev {
			return nil, nil
		}
		if node.isSelfOrDescendantOf(child) {
			return nil, infra.WrapErrorStackWithMessage(ErrInvalidAttachment, "attach a node below itself")
		}
		if child.HasParent() {
			return nil, infra.WrapErrorStackWithMessage(ErrInvalidAttachment, "node is already attached")
		}
		child.parent = weak.Make(node)
		notifyAttached()
	}
	if prev != nil {
		prev.parent = weak.Pointer[Node[T]]{}
		notifyDetached()
	}
	*slot = child
	return prev, nil
}

type constNode[T any] struct {
	node *Node[T]
}

func (c constNode[T]) Value() T             { return c.node.value }
func (c constNode[T]) HasLeft() bool        { return c.node.HasLeft() }
func (c constNode[T]) HasRight() bool       { return c.node.HasRight() }
func (c constNode[T]) HasParent() bool      { return c.node.HasParent() }
func (c constNode[T]) Direction() Direction { return c.node.Direction() }
func (c constNode[T]) Left() ConstNode[T]   { return c.node.Left().ReadOnly() }
func (c constNode[T]) Right() ConstNode[T]  { return c.node.Right().ReadOnly() }
func (c constNode[T]) Parent() ConstNode[T] { return c.node.Parent().ReadOnly() }
