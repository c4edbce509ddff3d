package engine

import "errors"

// Ошибки построения и обхода графа.
var (
	// ErrDuplicateNode — несколько узлов с одинаковым именем.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrUnknownNode — ребро ссылается на несуществующий узел.
	ErrUnknownNode = errors.New("edge references unknown node")

	// ErrSelfDependency — узел зависит от самого себя.
	ErrSelfDependency = errors.New("node depends on itself")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
)
