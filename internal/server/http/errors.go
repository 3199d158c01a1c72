package http

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/presentation/http/response"
	"github.com/linzen78111/pos2/pkg/errorbank"
)

// ErrorHandler renders every failure as {"error": ...}. Unknown routes become
// 404 and anything unclassified becomes an opaque 500.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr, status := classify(err)
		if status >= http.StatusInternalServerError {
			logger.Error("http request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err),
			)
		}

		if berr := response.New(c).WithStatus(status).WithError(appErr).Build(); berr != nil {
			logger.Error("write error response", zap.Error(berr))
		}
	}
}

func classify(err error) (*errorbank.AppError, int) {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr, appErr.StatusCode()
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Code == http.StatusNotFound, httpErr.Code == http.StatusMethodNotAllowed:
			return errorbank.NotFound(errorbank.DefaultNotFoundMessage, errorbank.WithCause(err)), http.StatusNotFound
		case httpErr.Code < http.StatusInternalServerError:
			return errorbank.BadRequest(errorbank.DefaultBadRequestMessage, errorbank.WithCause(err)), httpErr.Code
		}
	}

	return errorbank.Internal(errorbank.DefaultInternalMessage, errorbank.WithCause(err)), http.StatusInternalServerError
}
