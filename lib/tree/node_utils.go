package tree

import (
	"fmt"

	"go.uber.org/multierr"
)

// Tree link validation utilities.

// LinkViolationValidate walks the subtree under root and reports every
// child whose back-reference does not resolve to the node owning it, and
// every node reachable twice (shared ownership or a cycle).
// The root itself may have any parent.
func LinkViolationValidate[T any](root *Node[T]) error {
	if root == nil {
		return nil
	}

	var merr error
	visited := make(map[*Node[T]]struct{}, 16)
	stack := make([]*Node[T], 0, 16)
	defer func() {
		clear(stack)
	}()
	stack = append(stack, root)

	for size := len(stack); size > 0; size = len(stack) {
		aux := stack[size-1]
		stack = stack[:size-1]
		if _, ok := visited[aux]; ok {
			merr = multierr.Append(merr, fmt.Errorf("%w: node %v reached twice", ErrLinkViolation, aux.value))
			continue
		}
		visited[aux] = struct{}{}

		for _, child := range [...]struct {
			node *Node[T]
			dir  Direction
		}{{aux.right, Right}, {aux.left, Left}} {
			if child.node == nil {
				continue
			}
			if p := child.node.Parent(); p != aux {
				merr = multierr.Append(merr, fmt.Errorf(
					"%w: %s child %v of %v has a wrong parent",
					ErrLinkViolation, child.dir, child.node.value, aux.value,
				))
			}
			stack = append(stack, child.node)
		}
	}
	return merr
}

// Size counts the nodes owned by the subtree under root.
func Size[T any](root *Node[T]) int {
	if root == nil {
		return 0
	}
	count := 0
	stack := []*Node[T]{root}
	for len(stack) > 0 {
		aux := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		if aux.right != nil {
			stack = append(stack, aux.right)
		}
		if aux.left != nil {
			stack = append(stack, aux.left)
		}
	}
	return count
}
