package integrator

import "errors"

// Ошибки интегратора.
var (
	// ErrDuplicateComponent — компонент с таким именем уже зарегистрирован.
	ErrDuplicateComponent = errors.New("component already registered")

	// ErrUnknownDependency — зависимость не зарегистрирована.
	ErrUnknownDependency = errors.New("component depends on unknown component")

	// ErrCyclicDependency — цикл в графе зависимостей компонентов.
	// Конфигурационная ошибка: обнаруживается до запуска чего-либо.
	ErrCyclicDependency = errors.New("cyclic component dependency")

	// ErrComponentStartFailed — компонент не смог запуститься.
	ErrComponentStartFailed = errors.New("component start failed")

	// ErrAlreadyRunning — StartAll для уже запущенной системы.
	ErrAlreadyRunning = errors.New("integrator already running")
)
