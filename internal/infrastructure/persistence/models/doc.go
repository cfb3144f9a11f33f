// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel and AggregateModel
// - catalog.go: deduplicated catalog entities (categories, brands, attributes, price types, products, variants, images)
// - mapping.go: per-kind external id mapping tables
// - import_session.go: synchronization sessions
// - trade.go: orders and ERP export batches
package models
