package analysis

import "time"

// DetailStatus marks whether a slot's canister drop is still planned.
type DetailStatus int16

const (
	NotSkipped         DetailStatus = 1
	Skipped            DetailStatus = 2
	SkippedDueToManual DetailStatus = 3
)

func (s DetailStatus) String() string {
	switch s {
	case NotSkipped:
		return "NOT_SKIPPED"
	case Skipped:
		return "SKIPPED"
	case SkippedDueToManual:
		return "SKIPPED_DUE_TO_MANUAL"
	default:
		return "UNKNOWN"
	}
}

// Scope selects which packs a substitution touches.
type Scope string

const (
	// ScopeBatch limits eligible packs to the batch being prepared.
	ScopeBatch Scope = "batch"
	// ScopePackQueue targets packs currently queued on the robot.
	ScopePackQueue Scope = "pack_queue"
)

// PackAnalysis is the per-(pack, batch) analysis header.
type PackAnalysis struct {
	ID                 int64     `json:"id" db:"id"`
	PackID             int64     `json:"pack_id" db:"pack_id"`
	BatchID            int64     `json:"batch_id" db:"batch_id"`
	ManualFillRequired bool      `json:"manual_fill_required" db:"manual_fill_required"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// Detail is one slot-level drop plan inside an analysis.
type Detail struct {
	ID             int64        `json:"id" db:"id"`
	AnalysisID     int64        `json:"analysis_id" db:"analysis_id"`
	SlotID         int64        `json:"slot_id" db:"slot_id"`
	DrugKey        string       `json:"drug_key" db:"drug_key"`
	Quantity       float64      `json:"quantity" db:"quantity"`
	CanisterID     *int64       `json:"canister_id,omitempty" db:"canister_id"`
	DeviceID       *int64       `json:"device_id,omitempty" db:"device_id"`
	LocationNumber *int64       `json:"location_number,omitempty" db:"location_number"`
	Quadrant       *int16       `json:"quadrant,omitempty" db:"quadrant"`
	DropNumber     *int64       `json:"drop_number,omitempty" db:"drop_number"`
	ConfigID       *int64       `json:"config_id,omitempty" db:"config_id"`
	Status         DetailStatus `json:"status" db:"status"`
}

// SlotRecord is the raw slot input the builder turns into analysis details.
type SlotRecord struct {
	PackID         int64   `json:"pack_id"`
	SlotID         int64   `json:"slot_id"`
	DrugKey        string  `json:"drug_key"`
	Quantity       float64 `json:"quantity"`
	CanisterID     *int64  `json:"canister_id,omitempty"`
	DeviceID       *int64  `json:"device_id,omitempty"`
	LocationNumber *int64  `json:"location_number,omitempty"`
	Quadrant       *int16  `json:"quadrant,omitempty"`
	DropNumber     *int64  `json:"drop_number,omitempty"`
	ConfigID       *int64  `json:"config_id,omitempty"`
}

// RobotFillable reports whether a slot can go through a canister drop: it
// needs a canister, a drop number and a drop configuration. Anything less is
// filled by hand.
func (r SlotRecord) RobotFillable() bool {
	return r.CanisterID != nil && r.DropNumber != nil && r.ConfigID != nil
}

// SkippedDrugGroup marks a (pack, drug) whose every detail is skipped and is
// served by exactly one canister. Rebuilds re-seed these as SKIPPED so an
// operator's skip decision survives the rebuild.
type SkippedDrugGroup struct {
	PackID     int64   `json:"pack_id"`
	DrugKey    string  `json:"drug_key"`
	CanisterID int64   `json:"canister_id"`
	SlotIDs    []int64 `json:"slot_ids"`
}

// SkippedDetails is the set of SKIPPED details a revert would flip back.
type SkippedDetails struct {
	DetailIDs []int64
	PackIDs   []int64
	BatchID   int64
}
