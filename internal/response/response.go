package response

// SuccessResponse представляет успешный ответ API
type SuccessResponse struct {
	Message string `json:"message" example:"Schedule deleted successfully"`
}

// ErrorResponse представляет ответ с ошибкой API
type ErrorResponse struct {
	// Код ошибки для программной обработки
	// example: VALIDATION_ERROR
	Code string `json:"code"`

	// Человекочитаемое сообщение об ошибке
	// example: Missing required fields
	Message string `json:"message"`

	// Дополнительные детали об ошибке (опционально)
	// example: поле date должно быть в формате 2006-01-02
	Details string `json:"details,omitempty"`
}
