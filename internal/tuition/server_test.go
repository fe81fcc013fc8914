package tuition

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melisa-sener/tuition-payment-api/internal/auth"
	"github.com/melisa-sener/tuition-payment-api/internal/auth/token"
	"github.com/melisa-sener/tuition-payment-api/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := newTestStore(t)

	tokens, err := token.NewService("test-secret", time.Hour)
	require.NoError(t, err)

	credentials := auth.NewStaticStore([]config.UserConfig{
		{Username: "admin1", Password: "adminpass", Role: "admin"},
		{Username: "bank1", Password: "bankpass", Role: "bank"},
	})

	return NewServer(store, tokens, credentials)
}

func doJSON(t *testing.T, s *Server, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	return rec
}

func login(t *testing.T, s *Server, username, password string) string {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestServerHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tuition API is running", rec.Body.String())
}

func TestServerLogin(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tok := login(t, s, "admin1", "adminpass")
	assert.NotEmpty(t, tok)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin1",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, rec.Body.String())
}

func TestServerRoleEnforcement(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	adminTok := login(t, s, "admin1", "adminpass")
	bankTok := login(t, s, "bank1", "bankpass")

	tests := []struct {
		name       string
		method     string
		path       string
		bearer     string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing token",
			method:     http.MethodGet,
			path:       "/api/v1/tuition/unpaid?term=2024-Fall",
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"message":"Missing Bearer token"}`,
		},
		{
			name:       "garbage token",
			method:     http.MethodGet,
			path:       "/api/v1/tuition/unpaid?term=2024-Fall",
			bearer:     "garbage",
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"message":"Invalid or expired token"}`,
		},
		{
			name:       "bank token on admin route",
			method:     http.MethodGet,
			path:       "/api/v1/tuition/unpaid?term=2024-Fall",
			bearer:     bankTok,
			wantStatus: http.StatusForbidden,
			wantBody:   `{"message":"Forbidden: wrong role"}`,
		},
		{
			name:       "admin token on bank route",
			method:     http.MethodGet,
			path:       "/api/v1/bank/tuition/S1",
			bearer:     adminTok,
			wantStatus: http.StatusForbidden,
			wantBody:   `{"message":"Forbidden: wrong role"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := doJSON(t, s, tt.method, tt.path, tt.bearer, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestServerCreateAndLookup(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	adminTok := login(t, s, "admin1", "adminpass")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/tuition", adminTok, map[string]interface{}{
		"studentNo":    "S1001",
		"term":         "2024-Fall",
		"tuitionTotal": 1500,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Message string `json:"message"`
		Data    Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Tuition record created", created.Message)
	assert.Equal(t, "S1001", created.Data.StudentNo)
	assert.Equal(t, float64(0), created.Data.AmountPaid)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/tuition/S1001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"studentNo":"S1001","term":"2024-Fall","tuitionTotal":1500,"balance":1500}`, rec.Body.String())
}

func TestServerCreateValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	adminTok := login(t, s, "admin1", "adminpass")

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing studentNo", map[string]interface{}{"term": "2024-Fall", "tuitionTotal": 100}},
		{"missing term", map[string]interface{}{"studentNo": "S1", "tuitionTotal": 100}},
		{"zero total", map[string]interface{}{"studentNo": "S1", "term": "2024-Fall", "tuitionTotal": 0}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := doJSON(t, s, http.MethodPost, "/api/v1/tuition", adminTok, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"message":"Missing fields"}`, rec.Body.String())
		})
	}
}

func TestServerStudentNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/tuition/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Student not found"}`, rec.Body.String())
}

func TestServerBankLookup(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	adminTok := login(t, s, "admin1", "adminpass")
	bankTok := login(t, s, "bank1", "bankpass")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/tuition", adminTok, map[string]interface{}{
		"studentNo":    "S2001",
		"term":         "2024-Fall",
		"tuitionTotal": 900,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/bank/tuition/S2001", bankTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"studentNo":"S2001","term":"2024-Fall","tuitionTotal":900,"balance":900}`, rec.Body.String())
}

func TestServerUnpaid(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	adminTok := login(t, s, "admin1", "adminpass")

	for _, studentNo := range []string{"S2", "S1", "S3"} {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/tuition", adminTok, map[string]interface{}{
			"studentNo":    studentNo,
			"term":         "2024-Fall",
			"tuitionTotal": 1000,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/v1/tuition/unpaid?term=2024-Fall&page=1&limit=2", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Term        string      `json:"term"`
		TotalUnpaid int64       `json:"totalUnpaid"`
		Page        int64       `json:"page"`
		Limit       int64       `json:"limit"`
		Results     []unpaidRow `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-Fall", resp.Term)
	assert.EqualValues(t, 3, resp.TotalUnpaid)
	assert.EqualValues(t, 1, resp.Page)
	assert.EqualValues(t, 2, resp.Limit)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "S1", resp.Results[0].StudentNo)
	assert.Equal(t, "S2", resp.Results[1].StudentNo)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/tuition/unpaid", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"term is required"}`, rec.Body.String())
}

func TestServerUnpaidZeroLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	adminTok := login(t, s, "admin1", "adminpass")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/tuition", adminTok, map[string]interface{}{
		"studentNo":    "S1",
		"term":         "2024-Fall",
		"tuitionTotal": 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// An explicit limit=0 is honored as an empty page; the unpaid
	// count still reflects the full term.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/tuition/unpaid?term=2024-Fall&limit=0", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalUnpaid int64       `json:"totalUnpaid"`
		Limit       int64       `json:"limit"`
		Results     []unpaidRow `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.TotalUnpaid)
	assert.EqualValues(t, 0, resp.Limit)
	assert.Empty(t, resp.Results)
}

func TestServerBatch(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	adminTok := login(t, s, "admin1", "adminpass")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/tuition/batch", adminTok, []map[string]interface{}{
		{"studentNo": "S1", "term": "2024-Fall", "tuitionTotal": 1000},
		{"studentNo": "", "term": "2024-Fall", "tuitionTotal": 1000},
		{"studentNo": "S3", "term": "2024-Fall", "tuitionTotal": 1200},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Message      string       `json:"message"`
		CreatedCount int          `json:"createdCount"`
		ErrorCount   int          `json:"errorCount"`
		Created      []Record     `json:"created"`
		Errors       []batchError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Batch processed", resp.Message)
	assert.Equal(t, 2, resp.CreatedCount)
	assert.Equal(t, 1, resp.ErrorCount)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 1, resp.Errors[0].Index)
	assert.Equal(t, "Missing fields", resp.Errors[0].Message)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/tuition/batch", adminTok, []map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Request body must be a non-empty array"}`, rec.Body.String())
}

func TestServerPay(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	adminTok := login(t, s, "admin1", "adminpass")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/tuition", adminTok, map[string]interface{}{
		"studentNo":    "S1001",
		"term":         "2024-Fall",
		"tuitionTotal": 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Payment needs no token.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/tuition/pay", "", map[string]interface{}{
		"studentNo": "S1001",
		"term":      "2024-Fall",
		"amount":    400,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"paymentStatus": "Successful",
		"studentNo": "S1001",
		"term": "2024-Fall",
		"tuitionTotal": 1000,
		"amountPaid": 400,
		"remainingBalance": 600
	}`, rec.Body.String())

	// Overpayment is capped at the tuition total.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/tuition/pay", "", map[string]interface{}{
		"studentNo": "S1001",
		"term":      "2024-Fall",
		"amount":    5000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"paymentStatus": "Successful",
		"studentNo": "S1001",
		"term": "2024-Fall",
		"tuitionTotal": 1000,
		"amountPaid": 1000,
		"remainingBalance": 0
	}`, rec.Body.String())
}

func TestServerPayValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		wantBody   string
	}{
		{
			name:       "zero amount",
			body:       map[string]interface{}{"studentNo": "S1", "term": "2024-Fall", "amount": 0},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"studentNo, term and positive amount are required"}`,
		},
		{
			name:       "negative amount",
			body:       map[string]interface{}{"studentNo": "S1", "term": "2024-Fall", "amount": -5},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"studentNo, term and positive amount are required"}`,
		},
		{
			name:       "unknown record",
			body:       map[string]interface{}{"studentNo": "missing", "term": "2024-Fall", "amount": 100},
			wantStatus: http.StatusNotFound,
			wantBody:   `{"message":"Tuition record not found"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := doJSON(t, s, http.MethodPost, "/api/v1/tuition/pay", "", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}
