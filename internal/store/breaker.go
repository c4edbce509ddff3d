package store

import (
	"sync"
	"time"
)

// BreakerState — состояние circuit breaker.
type BreakerState int

const (
	// BreakerClosed — вызовы проходят, подсчитываются подряд идущие ошибки.
	BreakerClosed BreakerState = iota

	// BreakerOpen — вызовы отклоняются сразу, без обращения к хранилищу.
	BreakerOpen

	// BreakerHalfOpen — после recovery timeout пропускается один пробный вызов.
	BreakerHalfOpen
)

// String возвращает имя состояния.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Значения по умолчанию.
const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 30 * time.Second
)

// Breaker — circuit breaker для вызовов хранилища.
//
// Логика:
//   - CLOSED: вызовы проходят; failureThreshold подряд идущих ошибок
//     переводят breaker в OPEN; успех обнуляет счётчик
//   - OPEN: вызовы отклоняются с ErrBreakerOpen, обёрнутая функция
//     не вызывается; после recoveryTimeout следующий вызов становится
//     пробным (HALF_OPEN)
//   - HALF_OPEN: пропускается ровно один пробный вызов; успех закрывает
//     breaker, ошибка снова открывает и перезапускает таймер
type Breaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	openedAt    time.Time
	trialActive bool
}

// BreakerConfig — конфигурация Breaker.
type BreakerConfig struct {
	// FailureThreshold — количество подряд идущих ошибок до открытия (default: 5).
	FailureThreshold int

	// RecoveryTimeout — время до пробного вызова после открытия (default: 30s).
	RecoveryTimeout time.Duration
}

// NewBreaker создаёт circuit breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}

	timeout := cfg.RecoveryTimeout
	if timeout <= 0 {
		timeout = defaultRecoveryTimeout
	}

	return &Breaker{
		failureThreshold: threshold,
		recoveryTimeout:  timeout,
		state:            BreakerClosed,
	}
}

// Call выполняет fn через breaker.
//
// В состоянии OPEN возвращает ErrBreakerOpen не вызывая fn.
// В HALF_OPEN допускается единственный пробный вызов — конкурирующие
// вызовы получают ErrBreakerOpen, пока пробный не завершится.
func (b *Breaker) Call(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.record(err)
	return err
}

// State возвращает текущее состояние breaker.
// Учитывает истечение recovery timeout для OPEN.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.recoveryTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Failures возвращает текущий счётчик подряд идущих ошибок.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// admit решает, пропускать ли вызов.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil

	case BreakerOpen:
		if time.Since(b.openedAt) < b.recoveryTimeout {
			return ErrBreakerOpen
		}
		// Recovery timeout истёк — пропускаем пробный вызов
		b.state = BreakerHalfOpen
		b.trialActive = true
		return nil

	case BreakerHalfOpen:
		if b.trialActive {
			return ErrBreakerOpen
		}
		b.trialActive = true
		return nil
	}

	return nil
}

// record фиксирует результат вызова.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		if err != nil {
			b.failures++
			if b.failures >= b.failureThreshold {
				b.state = BreakerOpen
				b.openedAt = time.Now()
			}
			return
		}
		b.failures = 0

	case BreakerHalfOpen:
		b.trialActive = false
		if err != nil {
			// Пробный вызов неудачен — снова открываемся, таймер заново
			b.state = BreakerOpen
			b.openedAt = time.Now()
			return
		}
		b.state = BreakerClosed
		b.failures = 0
	}
}
