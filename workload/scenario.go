package workload

import (
	"context"
	"errors"
	"fmt"
	randv2 "math/rand/v2"

	"go.uber.org/zap"

	"github.com/benz9527/xtree/lib/infra"
	"github.com/benz9527/xtree/lib/tree"
	"github.com/benz9527/xtree/xlog"
)

type opKind uint8

const (
	opMove opKind = iota
	opFork
	opRegrow
	opReject
	_opMax
)

func (op opKind) String() string {
	switch op {
	case opMove:
		return "move"
	case opFork:
		return "fork"
	case opRegrow:
		return "regrow"
	case opReject:
		return "reject"
	default:
	}
	return "unknown"
}

// scenario owns its tree exclusively, nothing else touches it.
type scenario struct {
	id     int
	rand   *randv2.Rand
	logger xlog.XLogger
	stats  *counters
	root   *tree.Node[int64]
	nextID int64
	size   int
}

func newScenario(id int, seed uint64, logger xlog.XLogger, stats *counters) *scenario {
	return &scenario{
		id:     id,
		rand:   randv2.New(randv2.NewPCG(seed, uint64(id))),
		logger: logger,
		stats:  stats,
	}
}

func (s *scenario) value() int64 {
	s.nextID++
	return s.nextID
}

// build grows a random tree whose height is at most depth.
func (s *scenario) build(depth int) *tree.Node[int64] {
	if depth <= 1 || s.rand.IntN(4) == 0 {
		s.size++
		return tree.CreateLeaf(s.value())
	}
	var left, right *tree.Node[int64]
	if s.rand.IntN(3) > 0 {
		left = s.build(depth - 1)
	}
	if s.rand.IntN(3) > 0 {
		right = s.build(depth - 1)
	}
	node, err := tree.Fork(s.value(), left, right)
	if err != nil {
		// Fresh subtrees are unattached roots.
		panic(err)
	}
	s.size++
	return node
}

func (s *scenario) run(ctx context.Context, depth, steps int) error {
	ctx = context.WithValue(ctx, xlog.ContextKey("scenario"), s.id)
	s.root = s.build(depth)
	if err := s.check(); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "scenario tree built", zap.Int("nodes", s.size))

	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return infra.WrapErrorStack(err)
		}
		op := opKind(s.rand.IntN(int(_opMax)))
		if err := s.apply(op); err != nil {
			return infra.WrapErrorStackWithMessage(err, fmt.Sprintf("scenario %d step %d %s", s.id, step, op))
		}
		if err := s.check(); err != nil {
			return infra.WrapErrorStackWithMessage(err, fmt.Sprintf("scenario %d step %d %s", s.id, step, op))
		}
	}
	s.stats.scenarios.Add(1)
	s.logger.DebugContext(ctx, "scenario finished", zap.Int("nodes", s.size), zap.Int("steps", steps))
	return nil
}

func (s *scenario) check() error {
	if err := tree.LinkViolationValidate(s.root); err != nil {
		return err
	}
	if s.root.HasParent() {
		return errors.New("scenario root has a parent")
	}
	if size := tree.Size(s.root); size != s.size {
		return fmt.Errorf("tree holds %d nodes, expected %d", size, s.size)
	}
	return nil
}

func (s *scenario) apply(op opKind) error {
	s.stats.steps.Add(1)
	switch op {
	case opMove:
		return s.move()
	case opFork:
		return s.fork()
	case opRegrow:
		return s.regrow()
	case opReject:
		return s.reject()
	default:
	}
	return fmt.Errorf("unknown op %d", op)
}

func (s *scenario) nodes() []*tree.Node[int64] {
	res := make([]*tree.Node[int64], 0, s.size)
	stack := []*tree.Node[int64]{s.root}
	for len(stack) > 0 {
		aux := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res = append(res, aux)
		if aux.HasRight() {
			stack = append(stack, aux.Right())
		}
		if aux.HasLeft() {
			stack = append(stack, aux.Left())
		}
	}
	return res
}

func (s *scenario) pick(nodes []*tree.Node[int64]) *tree.Node[int64] {
	return nodes[s.rand.IntN(len(nodes))]
}

// cut detaches a random non-root node in one of the ways the tree offers.
func (s *scenario) cut() (*tree.Node[int64], error) {
	nodes := s.nodes()[1:]
	if len(nodes) == 0 {
		return nil, nil
	}
	target := s.pick(nodes)
	parent := target.Parent()
	var cut *tree.Node[int64]
	switch s.rand.IntN(3) {
	case 0:
		cut = target.Detach()
	case 1:
		if target.Direction() == tree.Left {
			cut = parent.RemoveLeft()
		} else {
			cut = parent.RemoveRight()
		}
	default:
		var err error
		if target.Direction() == tree.Left {
			cut, err = parent.ReplaceLeft(nil)
		} else {
			cut, err = parent.ReplaceRight(nil)
		}
		if err != nil {
			return nil, err
		}
	}
	if cut != target || cut.HasParent() {
		return nil, errors.New("detached node is not an unattached root")
	}
	return cut, nil
}

func (s *scenario) move() error {
	sub, err := s.cut()
	if err != nil || sub == nil {
		return err
	}
	free := make([]*tree.Node[int64], 0, 8)
	for _, node := range s.nodes() {
		if !node.HasLeft() || !node.HasRight() {
			free = append(free, node)
		}
	}
	target := s.pick(free)
	var prev *tree.Node[int64]
	if !target.HasLeft() && (target.HasRight() || s.rand.IntN(2) == 0) {
		prev, err = target.ReplaceLeft(sub)
	} else {
		prev, err = target.ReplaceRight(sub)
	}
	if err != nil {
		return err
	}
	if prev != nil || sub.Parent() != target {
		return errors.New("moved subtree is not owned by its new parent")
	}
	s.stats.moves.Add(1)
	return nil
}

func (s *scenario) fork() error {
	sub, err := s.cut()
	if err != nil {
		return err
	}
	var root *tree.Node[int64]
	if s.rand.IntN(2) == 0 {
		root, err = tree.Fork(s.value(), s.root, sub)
	} else {
		root, err = tree.Fork(s.value(), sub, s.root)
	}
	if err != nil {
		return err
	}
	s.root = root
	s.size++
	s.stats.forks.Add(1)
	return nil
}

func (s *scenario) regrow() error {
	target := s.pick(s.nodes())
	var prev *tree.Node[int64]
	if s.rand.IntN(2) == 0 {
		prev = target.ReplaceLeftWithLeaf(s.value())
	} else {
		prev = target.ReplaceRightWithLeaf(s.value())
	}
	if prev.HasParent() {
		return errors.New("replaced subtree still has a parent")
	}
	s.size += 1 - tree.Size(prev)
	s.stats.regrows.Add(1)
	return nil
}

// reject tries to attach an ancestor, or an owned node, and expects the
// tree to refuse.
func (s *scenario) reject() error {
	nodes := s.nodes()
	target := s.pick(nodes)
	var (
		prev *tree.Node[int64]
		err  error
	)
	if candidate := s.pick(nodes); candidate != s.root && s.rand.IntN(2) == 0 {
		// owned by its parent already
		prev, err = tree.CreateLeaf(s.value()).ReplaceLeft(candidate)
	} else {
		// the root is an ancestor of every node
		prev, err = target.ReplaceRight(s.root)
	}
	if !errors.Is(err, tree.ErrInvalidAttachment) || prev != nil {
		return fmt.Errorf("invalid attachment accepted: %v", err)
	}
	s.stats.rejected.Add(1)
	return nil
}
