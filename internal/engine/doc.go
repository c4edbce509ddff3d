// Package engine содержит общий граф зависимостей.
//
// Один и тот же Graph используется в двух местах:
//   - integrator — порядок запуска/остановки компонентов
//   - scheduler — инкрементальная разблокировка tasks внутри workflow
//
// Включает:
//   - graph.go — построение графа, DFS топологическая сортировка,
//     обнаружение циклов, вычисление готовых узлов
package engine
