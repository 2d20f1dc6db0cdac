package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Сентинелы видов ошибок. Каждая ошибка *Error разворачивается в один из них,
// поэтому транспортный слой сопоставляет их через errors.Is.
var (
	// ErrValidation: некорректный ввод (отрицательная цена, пустое обязательное поле).
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated: запрос без действующей сессии.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrPermissionDenied: пользователь аутентифицирован, но прав недостаточно.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound: сущность с указанным идентификатором отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUsername: имя пользователя уже занято.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidCredentials: неверная пара логин/пароль. Сообщение намеренно общее.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidTransition: переход статуса заказа не предусмотрен автоматом.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrProductUnavailable: товар в заказе отсутствует или деактивирован.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrServiceUnavailable: внешний сервис (completion) не ответил.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Ошибки инвариантов и хранилищ.
var (
	// Ошибка отсутствующего владельца заказа.
	ErrAccountRequired = errors.New("account_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной суммы заказа.
	ErrTotalNegative = errors.New("total must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrLineQtyInvalid = errors.New("line quantity must be greater than zero")
	// Ошибка, если зафиксированная цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line unit price must be non-negative")
	// Ошибка, если сумма позиций не помещается в int64.
	ErrAmountOverflow = errors.New("order total overflows")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match lines sum")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = errors.New("version conflict")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrCompletionNotConfigured: не задан ключ внешнего completion-сервиса.
	ErrCompletionNotConfigured = errors.New("completion service credential is not configured")
)

// Error: структурированная доменная ошибка: вид + сообщение + детали.
type Error struct {
	Kind    error
	Message string
	// Fields содержит ошибки по полям для ErrValidation.
	Fields map[string]string
	// Current и Requested заполняются для ErrInvalidTransition.
	Current   OrderStatus
	Requested OrderStatus
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// KindName возвращает машинное имя вида ошибки для API-ответов.
func (e *Error) KindName() string {
	return KindName(e.Kind)
}

// KindName отображает сентинел в стабильный идентификатор.
func KindName(kind error) string {
	switch {
	case errors.Is(kind, ErrValidation):
		return "validation_error"
	case errors.Is(kind, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(kind, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(kind, ErrNotFound):
		return "not_found"
	case errors.Is(kind, ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(kind, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(kind, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(kind, ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(kind, ErrServiceUnavailable):
		return "service_unavailable"
	default:
		return "internal"
	}
}

// NewValidationError собирает ошибку валидации с деталями по полям.
func NewValidationError(fields map[string]string) *Error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}

	return &Error{
		Kind:    ErrValidation,
		Message: "validation failed: " + strings.Join(parts, "; "),
		Fields:  fields,
	}
}

// Denied возвращает PermissionDenied с пояснением.
func Denied(format string, args ...any) *Error {
	return &Error{Kind: ErrPermissionDenied, Message: fmt.Sprintf(format, args...)}
}

// NotFound возвращает NotFound для сущности.
func NotFound(entity, id string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// InvalidTransition возвращает ошибку с текущим и запрошенным статусом.
func InvalidTransition(current, requested OrderStatus) *Error {
	return &Error{
		Kind:      ErrInvalidTransition,
		Message:   fmt.Sprintf("cannot move order from %s to %s", current, requested),
		Current:   current,
		Requested: requested,
	}
}

// ProductUnavailable сообщает о товаре, который нельзя заказать.
func ProductUnavailable(productID, reason string) *Error {
	return &Error{
		Kind:    ErrProductUnavailable,
		Message: fmt.Sprintf("product %s is unavailable: %s", productID, reason),
	}
}

// ServiceUnavailable оборачивает диагностику внешнего сервиса.
func ServiceUnavailable(upstream string) *Error {
	msg := ErrServiceUnavailable.Error()
	if upstream != "" {
		msg += ": " + upstream
	}
	return &Error{Kind: ErrServiceUnavailable, Message: msg}
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
