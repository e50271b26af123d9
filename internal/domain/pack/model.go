package pack

import "time"

// PackStatus is the lifecycle state of a pack. Values are stable wire codes
// shared with the pharmacy front end.
type PackStatus int16

const (
	StatusPending  PackStatus = 2
	StatusProgress PackStatus = 3
	StatusDone     PackStatus = 5
	StatusDeleted  PackStatus = 7
	StatusManual   PackStatus = 8
)

func (s PackStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusProgress:
		return "PROGRESS"
	case StatusDone:
		return "DONE"
	case StatusDeleted:
		return "DELETED"
	case StatusManual:
		return "MANUAL"
	default:
		return "UNKNOWN"
	}
}

// BatchStatus is the lifecycle state of a fill batch.
type BatchStatus int16

const (
	BatchImported BatchStatus = iota + 1
	BatchCanisterTransferRecommended
	BatchCanisterTransferDone
	BatchMfdUserAssigned
	BatchProcessed
	BatchDone
)

// Pack is one blister pack queued for robot or manual filling.
type Pack struct {
	ID          int64      `json:"id" db:"id"`
	DisplayID   int64      `json:"pack_display_id" db:"pack_display_id"`
	OrderNo     int64      `json:"order_no" db:"order_no"`
	BatchID     *int64     `json:"batch_id,omitempty" db:"batch_id"`
	Status      PackStatus `json:"status" db:"status"`
	SystemID    int64      `json:"system_id" db:"system_id"`
	CompanyID   int64      `json:"company_id" db:"company_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ModifiedAt  time.Time  `json:"modified_at" db:"modified_at"`
}

// Batch groups packs for one scheduling run on a system.
type Batch struct {
	ID        int64       `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Status    BatchStatus `json:"status" db:"status"`
	SystemID  int64       `json:"system_id" db:"system_id"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// TemplateKey identifies a prescription template by its compound key.
type TemplateKey struct {
	PatientID int64 `json:"patient_id"`
	FileID    int64 `json:"file_id"`
}
