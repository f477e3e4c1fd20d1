package orchestrator

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/flowgen/internal/domain"
)

// RetryPolicy — политика повторов узла.
//
// Задержка между попытками фиксированная (не экспоненциальная).
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Policy — политика выполнения узла, выведенная из metadata.
type Policy struct {
	// Timeout — ограничение одной попытки; 0 означает "без ограничения".
	Timeout time.Duration

	// Retry — nil, если retryMax не задан.
	Retry *RetryPolicy

	// IdempotencyKey — пустая строка означает отсутствие ключа.
	IdempotencyKey string
}

// MaxRetries возвращает число повторов (0, если политики нет).
func (p Policy) MaxRetries() int {
	if p.Retry == nil {
		return 0
	}
	return p.Retry.MaxRetries
}

// Backoff возвращает задержку между попытками.
func (p Policy) Backoff() time.Duration {
	if p.Retry == nil {
		return 0
	}
	return p.Retry.Backoff
}

// PolicyFromNode выводит политику из metadata узла.
//
//	timeoutMs      → Timeout
//	retryMax       → Retry.MaxRetries
//	retryBackoffMs → Retry.Backoff
//	idempotencyKey → IdempotencyKey
//
// Числа разбираются из десятичных строк; нечисловые и бесконечные
// значения считаются отсутствующими. Retry существует, только если
// разобрался retryMax. Отрицательные значения приводятся к 0.
func PolicyFromNode(node *domain.FlowNode) Policy {
	var p Policy

	if ms, ok := parseNumber(node.Metadata[domain.MetaTimeoutMs]); ok && ms > 0 {
		p.Timeout = millis(ms)
	}

	if retryMax, ok := parseNumber(node.Metadata[domain.MetaRetryMax]); ok {
		retry := &RetryPolicy{MaxRetries: int(math.Max(0, math.Floor(retryMax)))}
		if backoff, ok := parseNumber(node.Metadata[domain.MetaRetryBackoffMs]); ok && backoff > 0 {
			retry.Backoff = millis(backoff)
		}
		p.Retry = retry
	}

	p.IdempotencyKey = node.Metadata[domain.MetaIdempotencyKey]

	return p
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
