package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gatekeyhq/gatekey/internal/pkg/router"
)

func TestChain(t *testing.T) {
	t.Parallel()

	t.Run("applies middlewares outermost first", func(t *testing.T) {
		t.Parallel()

		var order []string
		mw := func(name string) router.Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		h := router.Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			order = append(order, "handler")
			w.WriteHeader(http.StatusNoContent)
		}), mw("first"), mw("second"))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, []string{"first", "second", "handler"}, order)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("no middlewares returns the handler unchanged", func(t *testing.T) {
		t.Parallel()

		called := false
		h := router.Chain(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			called = true
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.True(t, called)
	})
}
