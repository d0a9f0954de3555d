// Package autoinit runs the initialisers of all modules linked into an image,
// once, before the application starts.
package autoinit

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/edaniels/golog"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"
)

// Well known priorities. Lower values run first.
const (
	PrioTimers  uint16 = 1010
	PrioRandom  uint16 = 1020
	PrioDrivers uint16 = 1030
	PrioNetwork uint16 = 1040
	PrioSAUL    uint16 = 1050
	PrioDefault uint16 = 2000
)

var (
	ErrDuplicateModule   = errors.New("module registered twice")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrDependencyCycle   = errors.New("dependency cycle")
)

type Module struct {
	Name     string
	Priority uint16
	// After lists modules that must be initialised before this one.
	After []string
	Init  func()
}

type moduleNode struct {
	id  int64
	seq int
	mod Module
}

func (n *moduleNode) ID() int64 {
	return n.id
}

type Registry struct {
	mu      sync.Mutex
	modules map[string]*moduleNode
	seq     int
	once    sync.Once
	err     error
	ran     []string
	log     golog.Logger
}

func NewRegistry(logger golog.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry{
		modules: map[string]*moduleNode{},
		log:     logger,
	}
}

func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[m.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, m.Name)
	}
	if m.Priority == 0 {
		m.Priority = PrioDefault
	}

	hasher := fnv.New64()
	hasher.Write([]byte(m.Name))
	r.modules[m.Name] = &moduleNode{
		id:  int64(hasher.Sum64()),
		seq: r.seq,
		mod: m,
	}
	r.seq++
	return nil
}

// Order returns the module names in the order RunAll executes them:
// dependencies first, then by priority, then by registration order.
func (r *Registry) Order() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes, err := r.orderLocked()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.mod.Name
	}
	return names, nil
}

func (r *Registry) orderLocked() ([]*moduleNode, error) {
	g := multi.NewDirectedGraph()
	for _, n := range r.modules {
		if g.Node(n.ID()) == nil {
			g.AddNode(n)
		}
	}
	for _, n := range r.modules {
		for _, dep := range n.mod.After {
			if dep == n.mod.Name {
				return nil, fmt.Errorf("%w: %s depends on itself", ErrDependencyCycle, dep)
			}
			depNode, ok := r.modules[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %s needs %s", ErrUnknownDependency, n.mod.Name, dep)
			}
			g.SetLine(g.NewLine(depNode, n))
		}
	}

	if _, err := topo.Sort(g); err != nil {
		var unorderable topo.Unorderable
		if errors.As(err, &unorderable) {
			return nil, fmt.Errorf("%w: %v", ErrDependencyCycle, err)
		}
		return nil, err
	}

	// Kahn's algorithm, always taking the most urgent ready module.
	pending := map[int64]int{}
	var ready []*moduleNode
	for _, n := range r.modules {
		pending[n.ID()] = len(graph.NodesOf(g.To(n.ID())))
		if pending[n.ID()] == 0 {
			ready = append(ready, n)
		}
	}
	result := make([]*moduleNode, 0, len(r.modules))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			a, b := ready[i], ready[j]
			if a.mod.Priority != b.mod.Priority {
				return a.mod.Priority < b.mod.Priority
			}
			return a.seq < b.seq
		})
		next := ready[0]
		ready = ready[1:]
		result = append(result, next)
		for _, succ := range graph.NodesOf(g.From(next.ID())) {
			pending[succ.ID()]--
			if pending[succ.ID()] == 0 {
				ready = append(ready, succ.(*moduleNode))
			}
		}
	}
	return result, nil
}

// RunAll runs every registered initialiser. Only the first call does
// anything; later calls return the result of the first.
func (r *Registry) RunAll() error {
	r.once.Do(func() {
		r.mu.Lock()
		nodes, err := r.orderLocked()
		r.err = err
		r.mu.Unlock()
		if err != nil {
			return
		}
		for _, n := range nodes {
			r.log.Debugw("auto_init", "module", n.mod.Name, "priority", n.mod.Priority)
			if n.mod.Init != nil {
				n.mod.Init()
			}
			r.mu.Lock()
			r.ran = append(r.ran, n.mod.Name)
			r.mu.Unlock()
		}
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Ran returns the names of the modules initialised so far.
func (r *Registry) Ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}
