package worker

import "errors"

// Ошибки воркера.
var (
	// ErrRequestNotFound — заявки нет в RequestStore.
	ErrRequestNotFound = errors.New("run request not found")

	// ErrRequestNotPending — заявку уже взял другой воркер или она обработана.
	ErrRequestNotPending = errors.New("run request is not pending")

	// ErrFlowNotFound — flow заявки не найден.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrFlowInvalid — сохранённый flow не прошёл миграцию или проверку схемы.
	ErrFlowInvalid = errors.New("flow document is invalid")
)
