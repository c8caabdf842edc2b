package domain

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует отказ доменной операции.
// Клиенту возвращается отклоненное действие с человекочитаемой причиной,
// автоматических ретраев нет.
type ErrorKind string

const (
	// KindAuthz — действие выполняет не назначенный водитель / не та роль
	KindAuthz ErrorKind = "AUTHZ"

	// KindNotFound — рейс/автобус/водитель не найден
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindWrongState — нарушено условие по статусу
	KindWrongState ErrorKind = "WRONG_STATE"

	// KindOutOfWindow — нарушена временная политика старта
	KindOutOfWindow ErrorKind = "OUT_OF_WINDOW"

	// KindOutOfRange — нарушен геозабор (водитель не у начальной остановки)
	KindOutOfRange ErrorKind = "OUT_OF_RANGE"

	// KindCapacity — мест нет, либо счетчик ушел бы в минус
	KindCapacity ErrorKind = "CAPACITY"

	// KindTransientIO — сбой кэша/отправки в соединение; логируется и глотается
	KindTransientIO ErrorKind = "TRANSIENT_IO"
)

// DomainError — типизированная ошибка доменного слоя.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is позволяет сравнивать ошибки по Kind через errors.Is
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if errors.As(target, &de) {
		return e.Kind == de.Kind
	}
	return false
}

// KindOf возвращает Kind ошибки, либо пустую строку для недоменных ошибок
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Конструкторы по видам ошибок

func ErrAuthz(format string, args ...any) error {
	return &DomainError{Kind: KindAuthz, Message: fmt.Sprintf(format, args...)}
}

func ErrNotFound(format string, args ...any) error {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ErrWrongState(format string, args ...any) error {
	return &DomainError{Kind: KindWrongState, Message: fmt.Sprintf(format, args...)}
}

func ErrOutOfWindow(format string, args ...any) error {
	return &DomainError{Kind: KindOutOfWindow, Message: fmt.Sprintf(format, args...)}
}

func ErrOutOfRange(format string, args ...any) error {
	return &DomainError{Kind: KindOutOfRange, Message: fmt.Sprintf(format, args...)}
}

func ErrCapacity(format string, args ...any) error {
	return &DomainError{Kind: KindCapacity, Message: fmt.Sprintf(format, args...)}
}

func ErrTransientIO(msg string, cause error) error {
	return &DomainError{Kind: KindTransientIO, Message: msg, Err: cause}
}

// Сентинелы для errors.Is-проверок в usecase и тестах
var (
	// ErrOperationNotFound возвращается когда рейс не найден
	ErrOperationNotFound = &DomainError{Kind: KindNotFound, Message: "operation not found"}

	// ErrBusNotFound возвращается когда автобус не найден
	ErrBusNotFound = &DomainError{Kind: KindNotFound, Message: "bus not found"}

	// ErrNotAssignedDriver возвращается когда действие выполняет чужой водитель
	ErrNotAssignedDriver = &DomainError{Kind: KindAuthz, Message: "driver is not assigned to this operation"}
)
