package g3registry

import (
	"fmt"

	"github.com/sabouaram/g3edge/internal/stat"
)

// CheckAcyclic rejects a named-node config graph that contains a cycle,
// per §9's "Cyclic graph risk": escaper-of-escaper configs and resolver-
// depends-on-resolver configs must be checked at load time. deps(name)
// returns the names that name directly references (e.g. a RouteFailover
// escaper's primary/standby children, or a FailOver resolver's fallback
// driver name, per original_source/lib/g3-resolver).
//
// This is a plain iterative DFS toposort, not a goroutine-backed registry
// operation: it runs once per config load, before any node is constructed,
// so there is nothing to make concurrent.
func CheckAcyclic(names []stat.NodeName, deps func(stat.NodeName) []stat.NodeName) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[stat.NodeName]int, len(names))
	for _, n := range names {
		color[n] = white
	}

	var path []stat.NodeName
	var visit func(n stat.NodeName) error
	visit = func(n stat.NodeName) error {
		switch color[n] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("cyclic node dependency: %s -> %s", joinPath(path), n)
		}

		color[n] = gray
		path = append(path, n)
		for _, d := range deps(n) {
			if err := visit(d); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return nil
	}

	for _, n := range names {
		if color[n] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(path []stat.NodeName) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += " -> "
		}
		s += string(p)
	}
	return s
}
