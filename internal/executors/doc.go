// Package executors содержит executor'ы прикладных типов tasks.
//
// Конвейер прокси состоит из трёх типов:
//   - proxy_crawl    — сбор адресов прокси из HTTP-источников
//   - proxy_validate — проверка работоспособности собранных прокси
//   - proxy_score    — оценка качества проверенных прокси
//
// Каждый executor работает с хранилищем через интерфейс Store:
// записи прокси лежат по ключам с TTL, пул и множество валидных
// прокси поддерживаются как множества.
package executors
