package workflow

const (
	white = iota
	grey
	black
)

type dfsFrame struct {
	node string
	next int
}

// FindCycles walks adjacency depth-first from every node in order and returns
// one path per back edge found. Each path starts at the node the back edge
// points to. The walk keeps its own stack so deep graphs cannot overflow.
func FindCycles(order []string, adjacency map[string][]string) [][]string {
	color := make(map[string]int, len(order))
	var cycles [][]string

	for _, root := range order {
		if color[root] != white {
			continue
		}
		stack := []dfsFrame{{node: root}}
		color[root] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := adjacency[top.node]
			if top.next >= len(edges) {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			target := edges[top.next]
			top.next++

			switch color[target] {
			case white:
				color[target] = grey
				stack = append(stack, dfsFrame{node: target})
			case grey:
				cycles = append(cycles, cyclePath(stack, target))
			}
		}
	}
	return cycles
}

func cyclePath(stack []dfsFrame, target string) []string {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].node != target {
			continue
		}
		path := make([]string, 0, len(stack)-i)
		for _, f := range stack[i:] {
			path = append(path, f.node)
		}
		return path
	}
	return []string{target}
}
