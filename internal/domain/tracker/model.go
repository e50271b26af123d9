package tracker

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies what kind of batch mutation an audit entry records.
type Action string

const (
	ActionUpdateAltCanister      Action = "UPDATE_ALT_CANISTER"
	ActionReplenishRevertedPacks Action = "REPLENISH_REVERTED_PACKS"
	ActionSkipCanister           Action = "SKIP_CANISTER"
	ActionDeleteAnalysis         Action = "DELETE_PACK_ANALYSIS"
)

// Entry is one append-only audit record for a batch-level change.
type Entry struct {
	ID            uuid.UUID              `json:"id" db:"id"`
	BatchID       int64                  `json:"batch_id" db:"batch_id"`
	UserID        int64                  `json:"user_id" db:"user_id"`
	Action        Action                 `json:"action" db:"action"`
	Params        map[string]interface{} `json:"params" db:"params"`
	PacksAffected []int64                `json:"packs_affected" db:"packs_affected"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
}
