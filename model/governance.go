package model

// ProposalTypeMaintenance is the only proposal type any operation produces.
const ProposalTypeMaintenance = "MAINTENANCE"

// Proposal is the single governance slot attached to one property. Creating a
// new proposal overwrites the slot and bumps Generation; vote records are
// keyed by generation so a replaced proposal's votes never block the next one.
type Proposal struct {
	ObjectType    string `json:"objectType"`
	PropertyID    uint64 `json:"propertyId"`
	Generation    uint64 `json:"generation"`
	Proposer      string `json:"proposer"`
	ProposerAlias string `json:"proposerAlias"`
	ProposalType  string `json:"proposalType"`
	Details       string `json:"details"`
	Amount        uint64 `json:"amount"`
	VotesFor      uint64 `json:"votesFor"`     // Accumulated share-weight
	VotesAgainst  uint64 `json:"votesAgainst"` // Accumulated share-weight
	EndHeight     uint64 `json:"endHeight"`
	Executed      bool   `json:"executed"` // Reserved for a future execution step
	CreatedAt     uint64 `json:"createdAt"`
}

// VoteRecord marks that a holder has voted on one proposal generation.
type VoteRecord struct {
	ObjectType string `json:"objectType"`
	PropertyID uint64 `json:"propertyId"`
	Generation uint64 `json:"generation"`
	Voter      string `json:"voter"`
	VoteFor    bool   `json:"voteFor"`
	Weight     uint64 `json:"weight"` // Voter's share balance at cast time
	CastAt     uint64 `json:"castAt"`
}
