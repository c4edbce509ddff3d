// Package cli реализует инструмент командной строки Dirigent.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Dirigent API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления tasks, workflows и worker-узлами.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Dirigent API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	tasks, err := client.ListTasks(cli.ListTasksOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: dirigent-cli task list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - task: list, create, show, action, stats
//   - workflow: list, register, start, instances, show-instance, cancel
//   - node: list, add, show, remove, heartbeat
//   - status: агрегированный статус системы и метрики планировщика
//
// Каждая группа создаётся через фабричную функцию (NewTaskCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
