package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v3"
)

// TalerError is the Taler-style {code, hint} error body returned by
// every façade endpoint on failure, the ApiError shape spec §7 names.
type TalerError struct {
	Code int    `json:"code"`
	Hint string `json:"hint"`
}

// Well-known Taler numeric error codes used by this façade (spec §4.9,
// §7). Only the subset this gateway actually returns is named here.
const (
	ecBankTransferRequestUIDReused  = 2500
	ecBankDuplicateReservePubReused = 2501
	ecBankUnmanagedExchangeAccount  = 2502
	ecBankPaytoIBANUnsupported      = 2503
	ecBankSoftExceptionGeneric      = 2599
	ecGenericUnauthorized           = 1
	ecGenericJSONInvalid            = 2
	ecGenericParameterMissing       = 3
	ecGenericHTTPHeadersMalformed   = 4
	ecGenericCurrencyMismatch       = 5
)

func errJSON(c fiber.Ctx, status int, code int, hint string) error {
	return c.Status(status).JSON(TalerError{Code: code, Hint: hint})
}

// errorHandler is Fiber's process-wide error handler, grounded on
// stronghold's server.errorHandler: unwraps *fiber.Error for its status
// code, otherwise 500, and always responds with a TalerError body so
// callers never have to special-case the envelope shape.
func errorHandler(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	hint := "internal server error"

	if fe, ok := err.(*fiber.Error); ok {
		status = fe.Code
		hint = fe.Message
	}

	return c.Status(status).JSON(fiber.Map{
		"code":       ecBankSoftExceptionGeneric,
		"hint":       hint,
		"status":     status,
		"timestamp":  time.Now().Unix(),
		"request_id": c.Locals(requestIDKey),
	})
}
