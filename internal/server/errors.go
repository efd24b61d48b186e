package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// NotFoundJSON returns an HTTP error handler that renders every error,
// including router 404/405 and middleware rejections, as an ErrorResponse.
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			resp := ErrorResponse{Error: http.StatusText(he.Code), Code: he.Code}
			// keep middleware messages such as "missing key in request header"
			if msg, ok := he.Message.(string); ok && msg != "" {
				resp.Error = msg
			}
			_ = c.JSON(he.Code, resp)
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}
