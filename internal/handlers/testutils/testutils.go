// Package testutils содержит помощники для тестов HTTP-обработчиков.
package testutils

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// WithChiURLParams возвращает копию запроса, в контекст которой добавлены
// параметры пути chi. Позволяет вызывать обработчики напрямую, без роутера.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for name, value := range params {
		rctx.URLParams.Add(name, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
