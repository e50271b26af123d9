package canister

import "time"

// Canister is one drug canister mounted on (or assignable to) a filling
// device.
type Canister struct {
	ID              int64   `json:"id" db:"id"`
	DrugID          int64   `json:"drug_id" db:"drug_id"`
	DrugKey         string  `json:"drug_key" db:"drug_key"` // formatted ndc##txr
	Available       int64   `json:"available_quantity" db:"available_quantity"`
	Active          bool    `json:"active" db:"active"`
	DeviceID        *int64  `json:"device_id,omitempty" db:"device_id"`
	LocationNumber  *int64  `json:"location_number,omitempty" db:"location_number"`
	Quadrant        *int16  `json:"quadrant,omitempty" db:"quadrant"`
	DisplayLocation *string `json:"display_location,omitempty" db:"display_location"`
	CompanyID       int64   `json:"company_id" db:"company_id"`
	SystemID        int64   `json:"system_id" db:"system_id"`
}

// Reservation marks a canister as claimed by a batch while transfers are in
// flight.
type Reservation struct {
	CanisterID int64     `json:"canister_id" db:"canister_id"`
	BatchID    int64     `json:"batch_id" db:"batch_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SkipEvent is one historical skip of a canister with its operator-given
// reason.
type SkipEvent struct {
	ID         int64     `json:"id" db:"id"`
	CanisterID int64     `json:"canister_id" db:"canister_id"`
	Reason     string    `json:"reason" db:"reason"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SkipReasonOutOfStock is the reason recorded when a canister is skipped
// because its drug ran out. Reverts key off this exact string.
const SkipReasonOutOfStock = "Drug out of stock"
