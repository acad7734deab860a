package tree

import (
	"errors"
	"strconv"
)

// Direction tells which slot of its parent a node occupies.
type Direction int8

const (
	Left Direction = -1 + iota
	Root
	Right
)

func (dir Direction) String() string {
	switch dir {
	case Left:
		return "Left"
	case Root:
		return "Root"
	case Right:
		return "Right"
	default:
	}
	return "Direction(" + strconv.Itoa(int(dir)) + ")"
}

var (
	// ErrInvalidAttachment reports an attempt to give a node a second owner
	// or to attach a node below itself.
	ErrInvalidAttachment = errors.New("[xtree] invalid attachment")
	// ErrLinkViolation reports a broken parent back-reference or a node
	// owned twice inside one tree.
	ErrLinkViolation = errors.New("[xtree] link violation")
)

// ConstNode is a read-only view of a node. Navigation through it never
// yields a mutable node.
type ConstNode[T any] interface {
	Value() T
	HasLeft() bool
	HasRight() bool
	HasParent() bool
	Direction() Direction
	Left() ConstNode[T]
	Right() ConstNode[T]
	Parent() ConstNode[T]
}

// Observer receives node lifecycle events. Implementations must be safe
// for concurrent use, NodeReclaimed is called from the runtime cleanup
// goroutine.
type Observer interface {
	NodeCreated()
	NodeAttached()
	NodeDetached()
	NodeReclaimed()
}
