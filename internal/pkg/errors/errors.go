package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden используется, когда у соединения недостаточно прав для команды.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrRoundInactive используется, когда ответ приходит без активного вопроса
	// или после истечения таймера раунда.
	ErrRoundInactive = errors.New("round is not active")

	// ErrUnknownQuestion используется, когда публикация ссылается на несуществующий вопрос.
	ErrUnknownQuestion = errors.New("unknown question")
)
