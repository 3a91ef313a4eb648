package model

// Property is the central record for a fractionalized real-estate asset.
// Share supply is fixed at listing time; AvailableShares tracks the owner's
// unsold inventory, not outstanding supply.
type Property struct {
	ObjectType      string `json:"objectType"` // Set to the composite key object type (Property)
	ID              uint64 `json:"id"`
	Owner           string `json:"owner"` // Full X.509 identity of the listing owner
	OwnerAlias      string `json:"ownerAlias"`
	Price           uint64 `json:"price"`
	TotalShares     uint64 `json:"totalShares"`
	AvailableShares uint64 `json:"availableShares"`
	Address         string `json:"address"`
	Details         string `json:"details"`
	Verified        bool   `json:"verified"` // Reserved; no operation sets this
	Listed          bool   `json:"listed"`
	Locked          bool   `json:"locked"`
	RentalIncome    uint64 `json:"rentalIncome"` // Cumulative, never decremented
	LastMaintenance uint64 `json:"lastMaintenance"`
	CreationHeight  uint64 `json:"creationHeight"`
}

// MaintenanceRecord tracks maintenance spend against a property. No operation
// currently writes this record; CalculateShareValue reads it and treats a
// missing record as zero spend.
type MaintenanceRecord struct {
	ObjectType    string `json:"objectType"`
	PropertyID    uint64 `json:"propertyId"`
	TotalSpent    uint64 `json:"totalSpent"`
	LastCompleted uint64 `json:"lastCompleted"`
}

// ShareBalance is the per-(property, holder) ownership entry. Absent entries
// read as zero.
type ShareBalance struct {
	ObjectType string `json:"objectType"`
	PropertyID uint64 `json:"propertyId"`
	Holder     string `json:"holder"`
	Balance    uint64 `json:"balance"`
}

// RentalRecord is the latest rental amount recorded for one month bucket of a
// property. Recording again within the same bucket overwrites this record.
type RentalRecord struct {
	ObjectType  string `json:"objectType"`
	PropertyID  uint64 `json:"propertyId"`
	MonthBucket uint64 `json:"monthBucket"`
	Amount      uint64 `json:"amount"`
	RecordedBy  string `json:"recordedBy"`
	RecordedAt  uint64 `json:"recordedAt"` // Height at which the record was written
}

// RentalClaim is the per-holder high-water-mark of rental income already paid
// out. A holder's next payout is their pro-rata entitlement minus Claimed.
type RentalClaim struct {
	ObjectType string `json:"objectType"`
	PropertyID uint64 `json:"propertyId"`
	Holder     string `json:"holder"`
	Claimed    uint64 `json:"claimed"`
}

// PropertyHistoryEntry represents one historical state of a property record.
type PropertyHistoryEntry struct {
	TxID      string `json:"txId"`
	Timestamp string `json:"timestamp"` // RFC3339
	IsDelete  bool   `json:"isDelete"`
	Value     string `json:"value"` // Raw JSON value of the record at that time
}

// PaginatedPropertyResponse is the structure returned by paginated property queries.
type PaginatedPropertyResponse struct {
	Properties   []*Property `json:"properties"`
	NextBookmark string      `json:"nextBookmark"`
	FetchedCount int32       `json:"fetchedCount"`
}
