package visualize

// bfs returns hop distances from src (-1 when unreachable) and the BFS
// parent of every reached node.
func bfs(adj [][]int, src int) (dist, parent []int) {
	dist = make([]int, len(adj))
	parent = make([]int, len(adj))
	for i := range dist {
		dist[i], parent[i] = -1, -1
	}
	dist[src] = 0
	queue := []int{src}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			if dist[v] < 0 {
				dist[v] = dist[u] + 1
				parent[v] = u
				queue = append(queue, v)
			}
		}
	}
	return dist, parent
}

// closeness computes Wasserman-Faust closeness over out-going shortest
// paths, so nodes reaching few others are not over-rewarded.
func closeness(adj [][]int) []float64 {
	n := len(adj)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	for u := 0; u < n; u++ {
		dist, _ := bfs(adj, u)
		reach, sum := 0, 0
		for v, d := range dist {
			if v != u && d > 0 {
				reach++
				sum += d
			}
		}
		if sum == 0 {
			continue
		}
		r := float64(reach)
		out[u] = (r / float64(n-1)) * (r / float64(sum))
	}
	return out
}

// cycles reports one cycle per DFS back edge, as node ids in path order.
func cycles(g *Graph, adj [][]int) [][]string {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(adj))
	var stack []int
	var out [][]string

	var visit func(u int)
	visit = func(u int) {
		color[u] = grey
		stack = append(stack, u)
		for _, v := range adj[u] {
			switch color[v] {
			case white:
				visit(v)
			case grey:
				start := len(stack) - 1
				for stack[start] != v {
					start--
				}
				cycle := make([]string, 0, len(stack)-start)
				for _, x := range stack[start:] {
					cycle = append(cycle, g.Nodes[x].ID)
				}
				out = append(out, cycle)
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
	}
	for u := range adj {
		if color[u] == white {
			visit(u)
		}
	}
	return out
}

// topoOrder runs Kahn's algorithm. The order is nil when the graph has a cycle.
func topoOrder(g *Graph, adj [][]int) ([]string, bool) {
	indeg := make([]int, len(adj))
	for _, tos := range adj {
		for _, v := range tos {
			indeg[v]++
		}
	}
	var queue []int
	for u, d := range indeg {
		if d == 0 {
			queue = append(queue, u)
		}
	}
	order := make([]string, 0, len(adj))
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, g.Nodes[u].ID)
		for _, v := range adj[u] {
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	if len(order) < len(adj) {
		return nil, false
	}
	return order, true
}

// shortestPaths maps every node reachable from src to the hop-shortest
// path leading to it, src included.
func shortestPaths(g *Graph, adj [][]int, src int) map[string][]string {
	dist, parent := bfs(adj, src)
	out := make(map[string][]string)
	for v, d := range dist {
		if d <= 0 {
			continue
		}
		var rev []string
		for x := v; x != -1; x = parent[x] {
			rev = append(rev, g.Nodes[x].ID)
		}
		path := make([]string, len(rev))
		for i := range rev {
			path[i] = rev[len(rev)-1-i]
		}
		out[g.Nodes[v].ID] = path
	}
	return out
}
