package dto

import (
	"time"

	"github.com/google/uuid"
	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/trade"
)

// StartRunRequest asks for a new import session.
type StartRunRequest struct {
	ImportType string `json:"import_type" binding:"required,oneof=catalog attributes offers prices stock full order_status"`
	Force      bool   `json:"force"`
}

// ListSessionsRequest filters the session list.
type ListSessionsRequest struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	ImportType string `form:"import_type" binding:"omitempty,oneof=catalog attributes offers prices stock full order_status"`
	Status     string `form:"status" binding:"omitempty,oneof=pending started in_progress completed failed"`
	SortBy     string `form:"sort_by" binding:"omitempty,oneof=created_at updated_at started_at finished_at import_type status"`
	SortOrder  string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// Filter converts the request to a repository filter with defaults applied.
func (r ListSessionsRequest) Filter() exchange.SessionFilter {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 20
	}
	return exchange.SessionFilter{
		ImportType: exchange.ImportType(r.ImportType),
		Status:     exchange.SessionStatus(r.Status),
		Page:       r.Page,
		PageSize:   r.PageSize,
		SortBy:     r.SortBy,
		SortOrder:  r.SortOrder,
	}
}

// ExportOrdersRequest asks for an order export. A nil Compress uses the
// configured default.
type ExportOrdersRequest struct {
	Compress *bool `json:"compress"`
	Limit    int   `json:"limit" binding:"omitempty,min=1,max=5000"`
}

// SessionResponse is the list view of an import session.
type SessionResponse struct {
	ID              uuid.UUID  `json:"id"`
	ImportType      string     `json:"import_type"`
	Status          string     `json:"status"`
	TriggeredBy     string     `json:"triggered_by"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ProcessedItems  int        `json:"processed_items"`
	TotalItems      int        `json:"total_items"`
	ErrorCount      int        `json:"error_count"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
}

// SessionDetailResponse adds the report to SessionResponse.
type SessionDetailResponse struct {
	SessionResponse
	Report  string                 `json:"report"`
	Details exchange.ReportDetails `json:"details"`
}

// ToSessionResponse maps a session to its list view.
func ToSessionResponse(s *exchange.ImportSession) SessionResponse {
	return SessionResponse{
		ID:              s.ID,
		ImportType:      string(s.ImportType),
		Status:          string(s.Status),
		TriggeredBy:     string(s.TriggeredBy),
		StartedAt:       s.StartedAt,
		FinishedAt:      s.FinishedAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		ProcessedItems:  s.Details.ProcessedItems,
		TotalItems:      s.Details.TotalItems,
		ErrorCount:      s.Details.ErrorCount,
		ErrorMessage:    s.ErrorMessage,
		CancelRequested: s.CancelRequested,
	}
}

// ToSessionDetailResponse maps a session with its full report.
func ToSessionDetailResponse(s *exchange.ImportSession) SessionDetailResponse {
	return SessionDetailResponse{
		SessionResponse: ToSessionResponse(s),
		Report:          s.Report,
		Details:         s.Details,
	}
}

// SweepResponse reports a janitor pass.
type SweepResponse struct {
	Stale  int         `json:"stale"`
	Failed int         `json:"failed"`
	IDs    []uuid.UUID `json:"ids"`
}

// ToSweepResponse maps a sweep result.
func ToSweepResponse(r *appexchange.SweepResult) SweepResponse {
	ids := r.IDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return SweepResponse{Stale: r.Stale, Failed: r.Failed, IDs: ids}
}

// ExportBatchResponse describes an order export document.
type ExportBatchResponse struct {
	ID             uuid.UUID  `json:"id"`
	FileName       string     `json:"file_name"`
	StorageKey     string     `json:"storage_key"`
	Compressed     bool       `json:"compressed"`
	SizeBytes      int64      `json:"size_bytes"`
	Orders         int        `json:"orders"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// ToExportBatchResponse maps a batch.
func ToExportBatchResponse(b *trade.ExportBatch) ExportBatchResponse {
	return ExportBatchResponse{
		ID:             b.ID,
		FileName:       b.FileName,
		StorageKey:     b.StorageKey,
		Compressed:     b.Compressed,
		SizeBytes:      b.SizeBytes,
		Orders:         len(b.OrderIDs),
		CreatedAt:      b.CreatedAt,
		AcknowledgedAt: b.AcknowledgedAt,
	}
}

// ExportOrdersResponse is the result of an export request. Batch is null
// when there was nothing to export.
type ExportOrdersResponse struct {
	Orders int                  `json:"orders"`
	Batch  *ExportBatchResponse `json:"batch"`
}
