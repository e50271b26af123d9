package replenish

// Query selects and shapes one replenishment plan.
type Query struct {
	BatchID          int64   `json:"batch_id"`
	SystemID         int64   `json:"system_id"`
	DeviceIDs        []int64 `json:"device_ids,omitempty"`
	MiniBatch        bool    `json:"mini_batch"`
	OrderedPacks     bool    `json:"ordered_packs"`
	OnlyCanisters    []int64 `json:"only_canisters,omitempty"`
	ExcludeCanisters []int64 `json:"exclude_canisters,omitempty"`
}

// Item is one canister's line in the replenishment plan. Required counts
// outstanding whole-unit demand; Replenish is how much the operator must add
// before the batch can run dry-free.
type Item struct {
	CanisterID       int64   `json:"canister_id"`
	DrugKey          string  `json:"drug_key"`
	DrugName         string  `json:"drug_name"`
	DeviceID         *int64  `json:"device_id,omitempty"`
	LocationNumber   *int64  `json:"location_number,omitempty"`
	Quadrant         *int16  `json:"quadrant,omitempty"`
	DisplayLocation  *string `json:"display_location,omitempty"`
	Required         int64   `json:"required_quantity"`
	Available        int64   `json:"available_quantity"`
	DisplayAvailable int64   `json:"display_available_quantity"`
	Replenish        int64   `json:"replenish_quantity"`
	EarliestOrderNo  int64   `json:"earliest_order_no"`
	PackCount        int64   `json:"pack_count"`
}
