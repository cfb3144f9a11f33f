package models

import (
	"encoding/json"
	"time"

	"github.com/shop/backend/internal/domain/exchange"
)

// ImportSessionModel is the persistence model for the ImportSession domain entity.
type ImportSessionModel struct {
	AggregateModel
	ImportType      exchange.ImportType    `gorm:"type:varchar(20);not null;index"`
	Status          exchange.SessionStatus `gorm:"type:varchar(20);not null;index"`
	TriggeredBy     exchange.Trigger       `gorm:"type:varchar(20);not null"`
	StartedAt       *time.Time
	FinishedAt      *time.Time
	Report          string `gorm:"type:text"`
	ReportDetails   string `gorm:"type:jsonb"`
	ErrorMessage    string `gorm:"type:text"`
	CancelRequested bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ImportSessionModel) TableName() string {
	return "import_sessions"
}

// ToDomain converts the persistence model to a domain ImportSession entity.
func (m *ImportSessionModel) ToDomain() *exchange.ImportSession {
	s := &exchange.ImportSession{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ImportType:        m.ImportType,
		Status:            m.Status,
		TriggeredBy:       m.TriggeredBy,
		StartedAt:         m.StartedAt,
		FinishedAt:        m.FinishedAt,
		Report:            m.Report,
		Details:           exchange.NewReportDetails(),
		ErrorMessage:      m.ErrorMessage,
		CancelRequested:   m.CancelRequested,
	}
	if m.ReportDetails != "" {
		// a corrupt document should not hide the session itself
		_ = json.Unmarshal([]byte(m.ReportDetails), &s.Details)
	}
	return s
}

// FromDomain populates the persistence model from a domain ImportSession entity.
func (m *ImportSessionModel) FromDomain(s *exchange.ImportSession) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.ImportType = s.ImportType
	m.Status = s.Status
	m.TriggeredBy = s.TriggeredBy
	m.StartedAt = s.StartedAt
	m.FinishedAt = s.FinishedAt
	m.Report = s.Report
	m.ErrorMessage = s.ErrorMessage
	m.CancelRequested = s.CancelRequested
	if data, err := json.Marshal(s.Details); err == nil {
		m.ReportDetails = string(data)
	} else {
		m.ReportDetails = "{}"
	}
}

// ImportSessionModelFromDomain creates a new persistence model from a domain ImportSession entity.
func ImportSessionModelFromDomain(s *exchange.ImportSession) *ImportSessionModel {
	m := &ImportSessionModel{}
	m.FromDomain(s)
	return m
}
