package model

// AccountInfo stores information about registered participants in the registry.
type AccountInfo struct {
	ObjectType   string `json:"objectType"` // Set to the composite key object type (AccountInfo)
	FullID       string `json:"fullId"`     // Full X.509 identity string
	Alias        string `json:"alias"`      // Short name for this identity
	IsAdmin      bool   `json:"isAdmin"`
	RegisteredBy string `json:"registeredBy"` // Full ID of the identity that registered this one
	RegisteredAt uint64 `json:"registeredAt"` // Height at registration
	LastUpdated  uint64 `json:"lastUpdated"`
}

// PlatformConfig is the registry-wide singleton written at bootstrap and
// mutated only through admin operations.
type PlatformConfig struct {
	ObjectType               string `json:"objectType"`
	PlatformFeePerMille      uint64 `json:"platformFeePerMille"`      // Applied at share purchase, /1000
	MinimumSharesForProposal uint64 `json:"minimumSharesForProposal"` // Stake required to open a proposal
	ProposalDuration         uint64 `json:"proposalDuration"`         // Voting window in ticks
	TotalProperties          uint64 `json:"totalProperties"`          // Monotonic id allocator
	Treasury                 string `json:"treasury"`                 // Receives platform fees, funds distributions
	BootstrappedAt           uint64 `json:"bootstrappedAt"`
}
