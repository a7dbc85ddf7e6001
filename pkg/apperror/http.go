package apperror

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// EchoErrorHandler returns an echo HTTPErrorHandler that maps typed errors to
// status codes. Internal causes are logged but never sent to the client.
func EchoErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			_ = c.JSON(he.Code, errorBody{Error: "http_error", Message: msg})
			return
		}

		var ae *Error
		if errors.As(err, &ae) {
			status := HTTPStatus(ae.Kind)
			msg := ae.Message
			if ae.Kind == KindInternal {
				logger.Error().Err(ae.Err).Str("path", c.Path()).Msg(ae.Message)
				msg = "internal server error"
			}
			_ = c.JSON(status, errorBody{Error: ae.Kind.String(), Message: msg})
			return
		}

		logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		_ = c.JSON(http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal server error"})
	}
}
