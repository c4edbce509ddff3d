package engine

import "fmt"

// Graph — направленный граф зависимостей.
//
// Узлы идентифицируются именами. Ребро A→B означает «B зависит от A»,
// то есть A должен быть обработан раньше B.
type Graph struct {
	// nodes — имена узлов в порядке добавления.
	// Порядок добавления определяет детерминированность сортировки.
	nodes []string

	// dependsOn — узел → его зависимости.
	dependsOn map[string][]string

	// dependents — узел → узлы, которые от него зависят.
	dependents map[string][]string
}

// NewGraph создаёт пустой граф.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make([]string, 0),
		dependsOn:  make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// AddNode добавляет узел в граф.
func (g *Graph) AddNode(name string) error {
	if _, exists := g.dependsOn[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, name)
	}
	g.nodes = append(g.nodes, name)
	g.dependsOn[name] = make([]string, 0)
	return nil
}

// AddEdge добавляет зависимость: node зависит от dep.
// Оба узла должны быть предварительно добавлены через AddNode.
func (g *Graph) AddEdge(node, dep string) error {
	if node == dep {
		return fmt.Errorf("%w: %s", ErrSelfDependency, node)
	}
	if _, exists := g.dependsOn[node]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownNode, node)
	}
	if _, exists := g.dependsOn[dep]; !exists {
		return fmt.Errorf("%w: %s -> %s", ErrUnknownNode, node, dep)
	}

	for _, existing := range g.dependsOn[node] {
		if existing == dep {
			return nil // уже связаны
		}
	}

	g.dependsOn[node] = append(g.dependsOn[node], dep)
	g.dependents[dep] = append(g.dependents[dep], node)
	return nil
}

// Size возвращает количество узлов.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Dependencies возвращает зависимости узла.
func (g *Graph) Dependencies(name string) []string {
	return g.dependsOn[name]
}

// Цвета узлов для DFS.
const (
	colorWhite = iota // не посещён
	colorGray         // в текущем пути обхода
	colorBlack        // обработан
)

// TopoSort выполняет топологическую сортировку обходом в глубину.
//
// Возвращает порядок, в котором каждый узел следует за всеми своими
// зависимостями. При обнаружении цикла возвращает ErrCyclicDependency
// до того, как вызывающий успеет что-либо запустить.
func (g *Graph) TopoSort() ([]string, error) {
	color := make(map[string]int, len(g.nodes))
	order := make([]string, 0, len(g.nodes))

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case colorBlack:
			return nil
		case colorGray:
			return fmt.Errorf("%w: at %s", ErrCyclicDependency, name)
		}

		color[name] = colorGray
		for _, dep := range g.dependsOn[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = colorBlack

		// Зависимости уже в order — добавляем узел после них
		order = append(order, name)
		return nil
	}

	for _, name := range g.nodes {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// Ready возвращает узлы, готовые к обработке.
//
// Узел готов, если:
//   - все его зависимости завершены (в completed)
//   - сам узел ещё не завершён и не в процессе (не в completed и не в running)
//
// Порядок результата соответствует порядку добавления узлов.
func (g *Graph) Ready(completed, running map[string]bool) []string {
	ready := make([]string, 0)

	for _, name := range g.nodes {
		if completed[name] || running[name] {
			continue
		}

		allDepsCompleted := true
		for _, dep := range g.dependsOn[name] {
			if !completed[dep] {
				allDepsCompleted = false
				break
			}
		}

		if allDepsCompleted {
			ready = append(ready, name)
		}
	}

	return ready
}

// IsComplete проверяет, все ли узлы завершены.
func (g *Graph) IsComplete(completed map[string]bool) bool {
	for _, name := range g.nodes {
		if !completed[name] {
			return false
		}
	}
	return true
}

// Nodes возвращает имена узлов в порядке добавления.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}
