// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel and AggregateModel (optimistic locking version)
// - budget.go: plans, plan activities, executions, execution items, execution templates
// - reference.go: provinces, districts, facilities, programs, fiscal years
package models
