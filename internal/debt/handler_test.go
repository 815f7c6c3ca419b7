package debt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a4s/shopledger/internal/sales"
	"github.com/a4s/shopledger/internal/shared"
)

func newDebtRouter(repo *memoryRepo) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithActor(req.Context(), shared.Actor{ID: 3, Name: "cashier"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHandler(nil, newDebtService(repo)).MountRoutes(r)
	return r
}

func TestHandlerPay(t *testing.T) {
	repo := newMemoryRepo()
	router := newDebtRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/10/payments",
		strings.NewReader(`{"amount_paid":"100","payment_method_id":1}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var res PaymentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, sales.StatusPartial, res.NewStatus)
	assert.Equal(t, "150", res.NewRemaining.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/10/payments",
		strings.NewReader(`{"amount_paid":"200","payment_method_id":1}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds remaining balance of ₱150.00")
}

func TestHandlerRejectsBadInput(t *testing.T) {
	router := newDebtRouter(newMemoryRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/abc/payments", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/10/payments",
		strings.NewReader(`{"amount_paid":"10"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/99/payments",
		strings.NewReader(`{"amount_paid":"10","payment_method_id":1}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
