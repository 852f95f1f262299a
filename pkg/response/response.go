package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mediagrab/api/internal/model"
)

// Error codes
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeRateLimited         = "RATE_LIMITED"
	CodeServiceError        = "SERVICE_ERROR"
	CodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
	CodeInvalidSourceURL    = "INVALID_SOURCE_URL"
	CodeExtractionFailed    = "EXTRACTION_FAILED"
	CodeTransferFailed      = "TRANSFER_FAILED"
	CodeStorageFailed       = "STORAGE_FAILED"
	CodeRecordStoreFailed   = "RECORD_STORE_FAILED"
)

var kindCodes = map[model.ErrorKind]string{
	model.KindInvalidRequest:      CodeValidationError,
	model.KindUnsupportedPlatform: CodeUnsupportedPlatform,
	model.KindInvalidSourceURL:    CodeInvalidSourceURL,
	model.KindExtractionFailed:    CodeExtractionFailed,
	model.KindTransferFailed:      CodeTransferFailed,
	model.KindStorageFailed:       CodeStorageFailed,
	model.KindRecordStoreFailed:   CodeRecordStoreFailed,
}

type ErrorResponse = model.ErrorResponse

func Error(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// CodeFor maps a pipeline error to its response code.
func CodeFor(err error) string {
	if errors.Is(err, model.ErrNotFound) {
		return CodeNotFound
	}
	if kind, ok := model.KindOf(err); ok {
		return kindCodes[kind]
	}
	return CodeServiceError
}

// FromError writes err with the status its kind maps to.
func FromError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		status = fiber.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = fiber.StatusNotFound
	}
	return Error(c, status, CodeFor(err), Message(err))
}

// Message returns the client facing text of err. Validation errors report
// only their cause.
func Message(err error) string {
	var e *model.Error
	if errors.As(err, &e) && e.Kind == model.KindInvalidRequest && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

func ValidationError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
