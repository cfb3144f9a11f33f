package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/trade"
	"github.com/shop/backend/internal/interfaces/http/dto"
	"github.com/shop/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type mockSessionService struct {
	mock.Mock
}

func (m *mockSessionService) StartAsync(ctx context.Context, req appexchange.StartRequest) (*exchange.ImportSession, error) {
	args := m.Called(ctx, req)
	if s := args.Get(0); s != nil {
		return s.(*exchange.ImportSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionService) Get(ctx context.Context, id uuid.UUID) (*exchange.ImportSession, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*exchange.ImportSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionService) List(ctx context.Context, filter exchange.SessionFilter) ([]exchange.ImportSession, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]exchange.ImportSession), args.Get(1).(int64), args.Error(2)
}

func (m *mockSessionService) Cancel(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSessionService) Resume(ctx context.Context, id uuid.UUID) (*exchange.ImportSession, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*exchange.ImportSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionService) SweepStale(ctx context.Context) (*appexchange.SweepResult, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*appexchange.SweepResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockExportService struct {
	mock.Mock
}

func (m *mockExportService) Export(ctx context.Context, req appexchange.ExportRequest) (*appexchange.ExportResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*appexchange.ExportResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockExportService) Acknowledge(ctx context.Context, id uuid.UUID) (*trade.ExportBatch, error) {
	args := m.Called(ctx, id)
	if b := args.Get(0); b != nil {
		return b.(*trade.ExportBatch), args.Error(1)
	}
	return nil, args.Error(1)
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newSession(t *testing.T, importType exchange.ImportType) *exchange.ImportSession {
	t.Helper()
	s, err := exchange.NewImportSession(importType, exchange.TriggerAdmin, t0)
	require.NoError(t, err)
	return s
}

func newBatch(t *testing.T) *trade.ExportBatch {
	t.Helper()
	b, err := trade.NewExportBatch([]uuid.UUID{uuid.New(), uuid.New()}, "orders.xml", "exports/orders.xml", false, 512)
	require.NoError(t, err)
	return b
}

func setupExchange(compress bool) (*gin.Engine, *mockSessionService, *mockExportService) {
	sessions := new(mockSessionService)
	exports := new(mockExportService)
	engine := gin.New()
	engine.Use(middleware.RequestID())
	NewExchangeHandler(sessions, exports, compress).RegisterRoutes(engine.Group("/api/v1"))
	return engine, sessions, exports
}

func do(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestExchangeHandler_StartRun(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		s := newSession(t, exchange.ImportTypeCatalog)
		sessions.On("StartAsync", mock.Anything, appexchange.StartRequest{
			ImportType:  exchange.ImportTypeCatalog,
			Force:       true,
			TriggeredBy: exchange.TriggerAdmin,
		}).Return(s, nil)

		w := do(engine, http.MethodPost, "/api/v1/exchange/runs", map[string]any{"import_type": "catalog", "force": true})

		assert.Equal(t, http.StatusAccepted, w.Code)
		resp := decode(t, w)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.Equal(t, s.ID.String(), data["id"])
		assert.Equal(t, "pending", data["status"])
		assert.Equal(t, "admin", data["triggered_by"])
		sessions.AssertExpectations(t)
	})

	t.Run("conflict", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		active := newSession(t, exchange.ImportTypePrices)
		sessions.On("StartAsync", mock.Anything, mock.Anything).Return(nil, exchange.NewImportInProgressError(active))

		w := do(engine, http.MethodPost, "/api/v1/exchange/runs", map[string]any{"import_type": "prices"})

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decode(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeImportInProgress, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, active.ID.String())
		assert.NotEmpty(t, resp.Error.RequestID)
	})

	t.Run("validation", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)

		w := do(engine, http.MethodPost, "/api/v1/exchange/runs", map[string]any{"import_type": "everything"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "import_type", resp.Error.Details[0].Field)
		sessions.AssertNotCalled(t, "StartAsync", mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		engine, _, _ := setupExchange(false)

		w := do(engine, http.MethodPost, "/api/v1/exchange/runs", "{not json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decode(t, w).Error.Code)
	})
}

func TestExchangeHandler_Sessions(t *testing.T) {
	t.Run("list with meta", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		list := []exchange.ImportSession{*newSession(t, exchange.ImportTypeStock), *newSession(t, exchange.ImportTypeStock)}
		sessions.On("List", mock.Anything, exchange.SessionFilter{
			ImportType: exchange.ImportTypeStock,
			Page:       2,
			PageSize:   2,
		}).Return(list, int64(5), nil)

		w := do(engine, http.MethodGet, "/api/v1/exchange/sessions?import_type=stock&page=2&page_size=2", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.Len(t, resp.Data.([]any), 2)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(5), resp.Meta.Total)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	})

	t.Run("list defaults", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		sessions.On("List", mock.Anything, exchange.SessionFilter{Page: 1, PageSize: 20}).
			Return([]exchange.ImportSession{}, int64(0), nil)

		w := do(engine, http.MethodGet, "/api/v1/exchange/sessions", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		sessions.AssertExpectations(t)
	})

	t.Run("list rejects page size", func(t *testing.T) {
		engine, _, _ := setupExchange(false)
		w := do(engine, http.MethodGet, "/api/v1/exchange/sessions?page_size=1000", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		s := newSession(t, exchange.ImportTypeOffers)
		s.AppendReport(t0, "started")
		sessions.On("Get", mock.Anything, s.ID).Return(s, nil)

		w := do(engine, http.MethodGet, "/api/v1/exchange/sessions/"+s.ID.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w).Data.(map[string]any)
		assert.Contains(t, data["report"], "started")
		assert.Equal(t, "offers", data["import_type"])
	})

	t.Run("get bad id", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)

		w := do(engine, http.MethodGet, "/api/v1/exchange/sessions/not-a-uuid", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "id", resp.Error.Details[0].Field)
		sessions.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("get missing", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		id := uuid.New()
		sessions.On("Get", mock.Anything, id).Return(nil, fmt.Errorf("load session: %w", shared.ErrNotFound))

		w := do(engine, http.MethodGet, "/api/v1/exchange/sessions/"+id.String(), nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decode(t, w).Error.Code)
	})

	t.Run("cancel", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		s := newSession(t, exchange.ImportTypeFull)
		require.NoError(t, s.Fail("cancelled by operator", t0))
		sessions.On("Cancel", mock.Anything, s.ID).Return(nil)
		sessions.On("Get", mock.Anything, s.ID).Return(s, nil)

		w := do(engine, http.MethodPost, "/api/v1/exchange/sessions/"+s.ID.String()+"/cancel", nil)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "failed", decode(t, w).Data.(map[string]any)["status"])
		sessions.AssertExpectations(t)
	})

	t.Run("cancel terminal", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		id := uuid.New()
		sessions.On("Cancel", mock.Anything, id).Return(shared.ErrInvalidState)

		w := do(engine, http.MethodPost, "/api/v1/exchange/sessions/"+id.String()+"/cancel", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, decode(t, w).Error.Code)
		sessions.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("resume", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		s := newSession(t, exchange.ImportTypeCatalog)
		sessions.On("Resume", mock.Anything, s.ID).Return(s, nil)

		w := do(engine, http.MethodPost, "/api/v1/exchange/sessions/"+s.ID.String()+"/resume", nil)

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("sweep", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		sessions.On("SweepStale", mock.Anything).Return(&appexchange.SweepResult{}, nil)

		w := do(engine, http.MethodPost, "/api/v1/exchange/sessions/sweep", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w).Data.(map[string]any)
		assert.Equal(t, float64(0), data["stale"])
		assert.Equal(t, []any{}, data["ids"])
	})

	t.Run("unexpected error is hidden", func(t *testing.T) {
		engine, sessions, _ := setupExchange(false)
		sessions.On("SweepStale", mock.Anything).Return(nil, errors.New("pq: connection refused to 10.0.0.5"))

		w := do(engine, http.MethodPost, "/api/v1/exchange/sessions/sweep", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "10.0.0.5")
	})
}

func TestExchangeHandler_Orders(t *testing.T) {
	t.Run("export uses configured compression", func(t *testing.T) {
		engine, _, exports := setupExchange(true)
		batch := newBatch(t)
		exports.On("Export", mock.Anything, appexchange.ExportRequest{Compress: true}).
			Return(&appexchange.ExportResult{Batch: batch, Orders: 2}, nil)

		w := do(engine, http.MethodPost, "/api/v1/exchange/orders/export", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w).Data.(map[string]any)
		assert.Equal(t, float64(2), data["orders"])
		assert.Equal(t, batch.ID.String(), data["batch"].(map[string]any)["id"])
		exports.AssertExpectations(t)
	})

	t.Run("export request overrides", func(t *testing.T) {
		engine, _, exports := setupExchange(true)
		exports.On("Export", mock.Anything, appexchange.ExportRequest{Compress: false, Limit: 10}).
			Return(&appexchange.ExportResult{}, nil)

		w := do(engine, http.MethodPost, "/api/v1/exchange/orders/export", map[string]any{"compress": false, "limit": 10})

		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w).Data.(map[string]any)
		assert.Equal(t, float64(0), data["orders"])
		assert.Nil(t, data["batch"])
		exports.AssertExpectations(t)
	})

	t.Run("export rejects limit", func(t *testing.T) {
		engine, _, exports := setupExchange(false)

		w := do(engine, http.MethodPost, "/api/v1/exchange/orders/export", map[string]any{"limit": 100000})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		exports.AssertNotCalled(t, "Export", mock.Anything, mock.Anything)
	})

	t.Run("acknowledge", func(t *testing.T) {
		engine, _, exports := setupExchange(false)
		batch := newBatch(t)
		require.True(t, batch.Acknowledge(t0))
		exports.On("Acknowledge", mock.Anything, batch.ID).Return(batch, nil)

		w := do(engine, http.MethodPost, "/api/v1/exchange/orders/export/"+batch.ID.String()+"/ack", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w).Data.(map[string]any)
		assert.Equal(t, float64(2), data["orders"])
		assert.NotNil(t, data["acknowledged_at"])
	})

	t.Run("acknowledge unknown batch", func(t *testing.T) {
		engine, _, exports := setupExchange(false)
		id := uuid.New()
		exports.On("Acknowledge", mock.Anything, id).Return(nil, shared.ErrNotFound)

		w := do(engine, http.MethodPost, "/api/v1/exchange/orders/export/"+id.String()+"/ack", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"transition", &trade.TransitionError{Code: trade.TransitionStale, From: trade.ERPStatusShipped, To: trade.ERPStatusPaid}, http.StatusUnprocessableEntity, trade.TransitionStale},
		{"wrapped conflict", fmt.Errorf("start: %w", exchange.ErrImportInProgress), http.StatusConflict, dto.ErrCodeImportInProgress},
		{"invalid state", shared.ErrInvalidState, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"plain", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			(&BaseHandler{}).HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Error.Code)
		})
	}
}
