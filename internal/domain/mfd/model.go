// Package mfd owns the manual-fill-device analysis rows that must be cleaned
// up when a pack's robot analysis is rebuilt.
package mfd

// Analysis is one manual-fill-device analysis header.
type Analysis struct {
	ID     int64 `json:"id" db:"id"`
	PackID int64 `json:"pack_id" db:"pack_id"`
}
