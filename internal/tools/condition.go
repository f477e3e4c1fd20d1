package tools

import (
	"errors"
	"fmt"
	"time"

	"github.com/robertkrimen/otto"
)

// defaultConditionLimit — предел времени вычисления одного выражения.
const defaultConditionLimit = time.Second

var errConditionHalted = errors.New("condition evaluation halted")

// ConditionEvaluator вычисляет условия узлов ветвления.
//
// Выражение — JavaScript (ES5), в области видимости доступна
// переменная context:
//
//	context.input.amount > 100 && context.upstream.check.ok
//
// Результат приводится к boolean по правилам JavaScript.
// Для каждого вызова создаётся новая VM: otto.Otto не потокобезопасен.
type ConditionEvaluator struct {
	limit time.Duration
}

// NewConditionEvaluator создаёт вычислитель с пределом времени limit
// (0 — значение по умолчанию).
func NewConditionEvaluator(limit time.Duration) *ConditionEvaluator {
	if limit <= 0 {
		limit = defaultConditionLimit
	}
	return &ConditionEvaluator{limit: limit}
}

// Evaluate вычисляет выражение над scope.
func (e *ConditionEvaluator) Evaluate(expression string, scope map[string]any) (result bool, err error) {
	vm := otto.New()
	vm.Interrupt = make(chan func(), 1)

	if err := vm.Set("context", scope); err != nil {
		return false, fmt.Errorf("set context: %w", err)
	}

	// Прерывание бесконечных циклов: otto вызывает функцию из
	// Interrupt внутри VM, panic поднимается до recover ниже.
	timer := time.AfterFunc(e.limit, func() {
		vm.Interrupt <- func() { panic(errConditionHalted) }
	})
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			if r == errConditionHalted {
				err = fmt.Errorf("condition exceeded %s", e.limit)
				return
			}
			panic(r)
		}
	}()

	value, err := vm.Run(expression)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expression, err)
	}

	return value.ToBoolean()
}
