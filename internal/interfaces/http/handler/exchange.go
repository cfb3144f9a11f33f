package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/trade"
	"github.com/shop/backend/internal/interfaces/http/dto"
	"github.com/shop/backend/internal/interfaces/http/middleware"
	"github.com/shop/backend/internal/interfaces/http/router"
)

// SessionService is the part of the session manager the admin API drives.
type SessionService interface {
	StartAsync(ctx context.Context, req appexchange.StartRequest) (*exchange.ImportSession, error)
	Get(ctx context.Context, id uuid.UUID) (*exchange.ImportSession, error)
	List(ctx context.Context, filter exchange.SessionFilter) ([]exchange.ImportSession, int64, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Resume(ctx context.Context, id uuid.UUID) (*exchange.ImportSession, error)
	SweepStale(ctx context.Context) (*appexchange.SweepResult, error)
}

// OrderExportService renders and acknowledges order export documents.
type OrderExportService interface {
	Export(ctx context.Context, req appexchange.ExportRequest) (*appexchange.ExportResult, error)
	Acknowledge(ctx context.Context, batchID uuid.UUID) (*trade.ExportBatch, error)
}

// ExchangeHandler serves /exchange: import sessions and order exports.
type ExchangeHandler struct {
	BaseHandler
	sessions       SessionService
	exports        OrderExportService
	exportCompress bool
}

// NewExchangeHandler creates an ExchangeHandler. exportCompress is used when
// an export request does not say.
func NewExchangeHandler(sessions SessionService, exports OrderExportService, exportCompress bool) *ExchangeHandler {
	return &ExchangeHandler{sessions: sessions, exports: exports, exportCompress: exportCompress}
}

// RegisterRoutes implements router.RouteRegistrar.
func (h *ExchangeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := router.NewDomainGroup("exchange", "/exchange").
		Use(middleware.BodyLimit(middleware.DefaultBodyLimit))
	g.GET("/sessions", h.ListSessions).
		GET("/sessions/:id", h.GetSession).
		POST("/sessions/sweep", h.SweepStale).
		POST("/sessions/:id/cancel", h.CancelSession).
		POST("/sessions/:id/resume", h.ResumeSession).
		POST("/runs", h.StartRun)
	g.Group("orders", "/orders").
		POST("/export", h.ExportOrders).
		POST("/export/:id/ack", h.AcknowledgeExport)
	g.RegisterRoutes(rg)
}

// ListSessions returns sessions newest first.
func (h *ExchangeHandler) ListSessions(c *gin.Context) {
	var req dto.ListSessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	filter := req.Filter()
	sessions, total, err := h.sessions.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]dto.SessionResponse, len(sessions))
	for i := range sessions {
		out[i] = dto.ToSessionResponse(&sessions[i])
	}
	h.SuccessWithMeta(c, out, total, filter.Page, filter.PageSize)
}

// GetSession returns one session with its report.
func (h *ExchangeHandler) GetSession(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	s, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSessionDetailResponse(s))
}

// StartRun creates a session and runs it in the background.
func (h *ExchangeHandler) StartRun(c *gin.Context) {
	var req dto.StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	s, err := h.sessions.StartAsync(c.Request.Context(), appexchange.StartRequest{
		ImportType:  exchange.ImportType(req.ImportType),
		Force:       req.Force,
		TriggeredBy: exchange.TriggerAdmin,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.ToSessionResponse(s))
}

// CancelSession requests cooperative cancellation.
func (h *ExchangeHandler) CancelSession(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.sessions.Cancel(ctx, id); err != nil {
		h.HandleError(c, err)
		return
	}
	s, err := h.sessions.Get(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.ToSessionResponse(s))
}

// ResumeSession restarts an interrupted session from its checkpoint.
func (h *ExchangeHandler) ResumeSession(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	s, err := h.sessions.Resume(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.ToSessionResponse(s))
}

// SweepStale runs the stale session janitor once.
func (h *ExchangeHandler) SweepStale(c *gin.Context) {
	result, err := h.sessions.SweepStale(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSweepResponse(result))
}

// ExportOrders writes unsent orders into a new export document.
func (h *ExchangeHandler) ExportOrders(c *gin.Context) {
	var req dto.ExportOrdersRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	compress := h.exportCompress
	if req.Compress != nil {
		compress = *req.Compress
	}
	result, err := h.exports.Export(c.Request.Context(), appexchange.ExportRequest{Compress: compress, Limit: req.Limit})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := dto.ExportOrdersResponse{Orders: result.Orders}
	if result.Batch != nil {
		batch := dto.ToExportBatchResponse(result.Batch)
		resp.Batch = &batch
	}
	h.Success(c, resp)
}

// AcknowledgeExport marks the orders of a batch as received by the ERP.
func (h *ExchangeHandler) AcknowledgeExport(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	batch, err := h.exports.Acknowledge(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToExportBatchResponse(batch))
}
