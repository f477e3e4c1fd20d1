package domain

// ExecutionStatus — итоговый статус выполнения flow.
//
// Все статусы финальные: run переходит ровно в один из них.
//
//	validation_error — flow не прошёл валидацию, ни один узел не запускался
//	success          — все узлы выполнены
//	failed           — узел упал без возможности восстановления
//	                   или граф не удалось обработать целиком
//	timeout          — узел превысил timeoutMs
type ExecutionStatus string

const (
	ExecutionStatusValidationError ExecutionStatus = "validation_error"
	ExecutionStatusSuccess         ExecutionStatus = "success"
	ExecutionStatusFailed          ExecutionStatus = "failed"
	ExecutionStatusTimeout         ExecutionStatus = "timeout"
)

// IsSuccess возвращает true для успешного run.
func (s ExecutionStatus) IsSuccess() bool {
	return s == ExecutionStatusSuccess
}

// NodeRunStatus — итог выполнения одного узла.
type NodeRunStatus string

const (
	NodeRunStatusSuccess NodeRunStatus = "success"
	NodeRunStatusFailed  NodeRunStatus = "failed"
	NodeRunStatusTimeout NodeRunStatus = "timeout"
)

// RequestStatus — статус заявки на запуск (RunRequest).
//
// Жизненный цикл:
//
//	PENDING → RUNNING → DONE
//
// Результат выполнения хранится не в заявке, а в снимке FlowRun.
type RequestStatus string

const (
	// RequestStatusPending — заявка создана, ждёт воркера.
	RequestStatusPending RequestStatus = "PENDING"

	// RequestStatusRunning — воркер взял заявку.
	RequestStatusRunning RequestStatus = "RUNNING"

	// RequestStatusDone — движок вернул результат (любой).
	RequestStatusDone RequestStatus = "DONE"
)

// IsTerminal возвращает true, если заявка обработана.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusDone
}
