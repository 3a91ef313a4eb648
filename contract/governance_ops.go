package contract

import (
	"encoding/json"
	"fmt"

	"brickshare/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Governance Operations ---
//
// Each property carries a single proposal slot. Creating a proposal
// overwrites the slot and bumps its generation; vote records are keyed by
// (property, generation, voter) so a replaced proposal's votes never block
// voting on its successor.

// CreateMaintenanceProposal opens a maintenance proposal on a property. The
// caller must hold at least the platform's minimum share stake and the
// property must be unlocked.
func (s *BrickshareSmartContract) CreateMaintenanceProposal(ctx contractapi.TransactionContextInterface,
	id uint64, details string, amount uint64) error {

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("CreateMaintenanceProposal: failed to get actor info: %w", err)
	}

	property, err := s.getPropertyByID(ctx, id)
	if err != nil {
		return err
	}

	cfg, err := s.getPlatformConfig(ctx)
	if err != nil {
		return fmt.Errorf("CreateMaintenanceProposal: %w", err)
	}

	proposerBalance, err := s.getShareBalanceValue(ctx, id, actor.fullID)
	if err != nil {
		return fmt.Errorf("CreateMaintenanceProposal: %w", err)
	}
	if proposerBalance < cfg.MinimumSharesForProposal {
		return registryErrorf(CodeMinimumShares, "caller '%s' holds %d shares of property %d, %d required to propose", actor.fullID, proposerBalance, id, cfg.MinimumSharesForProposal)
	}
	if property.Locked {
		return registryErrorf(CodePropertyLocked, "property %d is locked", id)
	}
	if err := s.validateOptionalString(details, "details", maxDetailsLength); err != nil {
		return err
	}

	height, err := s.currentHeight(ctx)
	if err != nil {
		return fmt.Errorf("CreateMaintenanceProposal: failed to get height: %w", err)
	}

	// A live proposal in the slot is silently replaced; its generation seeds
	// the successor's so stale vote records can never collide.
	generation := uint64(1)
	prior, err := s.getProposalByPropertyID(ctx, id)
	if err != nil {
		return fmt.Errorf("CreateMaintenanceProposal: %w", err)
	}
	if prior != nil {
		generation = prior.Generation + 1
		logger.Infof("Property %d proposal slot overwritten: generation %d -> %d", id, prior.Generation, generation)
	}

	proposal := model.Proposal{
		ObjectType:    proposalObjectType,
		PropertyID:    id,
		Generation:    generation,
		Proposer:      actor.fullID,
		ProposerAlias: actor.alias,
		ProposalType:  model.ProposalTypeMaintenance,
		Details:       details,
		Amount:        amount,
		VotesFor:      0,
		VotesAgainst:  0,
		EndHeight:     height + cfg.ProposalDuration,
		Executed:      false,
		CreatedAt:     height,
	}
	if err := s.putProposal(ctx, &proposal); err != nil {
		return fmt.Errorf("CreateMaintenanceProposal: %w", err)
	}

	s.emitRegistryEvent(ctx, "ProposalCreated", map[string]interface{}{
		"propertyId":    id,
		"generation":    generation,
		"proposer":      actor.fullID,
		"proposerAlias": actor.alias,
		"proposalType":  model.ProposalTypeMaintenance,
		"amount":        amount,
		"endHeight":     proposal.EndHeight,
	})
	logger.Infof("Maintenance proposal (generation %d) created on property %d by '%s', voting ends at height %d", generation, id, actor.alias, proposal.EndHeight)
	return nil
}

// VoteOnProposal casts a share-weighted vote on a property's active proposal.
// The weight is the caller's current share balance, not a snapshot at
// proposal creation.
func (s *BrickshareSmartContract) VoteOnProposal(ctx contractapi.TransactionContextInterface, id uint64, voteFor bool) error {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("VoteOnProposal: failed to get actor info: %w", err)
	}

	proposal, err := s.getProposalByPropertyID(ctx, id)
	if err != nil {
		return fmt.Errorf("VoteOnProposal: %w", err)
	}
	if proposal == nil {
		return registryErrorf(CodeNoActiveProposal, "property %d has no active proposal", id)
	}

	height, err := s.currentHeight(ctx)
	if err != nil {
		return fmt.Errorf("VoteOnProposal: failed to get height: %w", err)
	}
	if height >= proposal.EndHeight {
		return registryErrorf(CodeProposalExpired, "voting on property %d closed at height %d (now %d)", id, proposal.EndHeight, height)
	}

	voteKey, err := s.createVoteCompositeKey(ctx, id, proposal.Generation, actor.fullID)
	if err != nil {
		return fmt.Errorf("VoteOnProposal: failed to create vote key: %w", err)
	}
	existing, err := ctx.GetStub().GetState(voteKey)
	if err != nil {
		return fmt.Errorf("VoteOnProposal: ledger error checking prior vote: %w", err)
	}
	if existing != nil {
		return registryErrorf(CodeAlreadyVoted, "caller '%s' already voted on property %d proposal generation %d", actor.fullID, id, proposal.Generation)
	}

	weight, err := s.getShareBalanceValue(ctx, id, actor.fullID)
	if err != nil {
		return fmt.Errorf("VoteOnProposal: %w", err)
	}

	record := model.VoteRecord{
		ObjectType: voteObjectType,
		PropertyID: id,
		Generation: proposal.Generation,
		Voter:      actor.fullID,
		VoteFor:    voteFor,
		Weight:     weight,
		CastAt:     height,
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("VoteOnProposal: failed to marshal vote record: %w", err)
	}
	if err := ctx.GetStub().PutState(voteKey, recordBytes); err != nil {
		return fmt.Errorf("VoteOnProposal: failed to save vote record: %w", err)
	}

	if voteFor {
		proposal.VotesFor += weight
	} else {
		proposal.VotesAgainst += weight
	}
	if err := s.putProposal(ctx, proposal); err != nil {
		return fmt.Errorf("VoteOnProposal: %w", err)
	}

	s.emitRegistryEvent(ctx, "VoteCast", map[string]interface{}{
		"propertyId":   id,
		"generation":   proposal.Generation,
		"voter":        actor.fullID,
		"voterAlias":   actor.alias,
		"voteFor":      voteFor,
		"weight":       weight,
		"votesFor":     proposal.VotesFor,
		"votesAgainst": proposal.VotesAgainst,
	})
	logger.Infof("Vote cast on property %d proposal generation %d by '%s': for=%t weight=%d", id, proposal.Generation, actor.alias, voteFor, weight)
	return nil
}

// GetActiveProposal is a pure lookup of the proposal slot. It does not check
// expiry; callers compare EndHeight to the current height themselves.
func (s *BrickshareSmartContract) GetActiveProposal(ctx contractapi.TransactionContextInterface, id uint64) (*model.Proposal, error) {
	return s.getProposalByPropertyID(ctx, id)
}

// getProposalByPropertyID reads the proposal slot, nil when empty.
func (s *BrickshareSmartContract) getProposalByPropertyID(ctx contractapi.TransactionContextInterface, id uint64) (*model.Proposal, error) {
	proposalKey, err := s.createProposalCompositeKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to create proposal key for property %d: %w", id, err)
	}
	raw, err := ctx.GetStub().GetState(proposalKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading proposal for property %d: %w", id, err)
	}
	if raw == nil {
		return nil, nil
	}
	var proposal model.Proposal
	if err := json.Unmarshal(raw, &proposal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proposal for property %d: %w", id, err)
	}
	return &proposal, nil
}

func (s *BrickshareSmartContract) putProposal(ctx contractapi.TransactionContextInterface, proposal *model.Proposal) error {
	proposalKey, err := s.createProposalCompositeKey(ctx, proposal.PropertyID)
	if err != nil {
		return fmt.Errorf("failed to create proposal key for property %d: %w", proposal.PropertyID, err)
	}
	proposalBytes, err := json.Marshal(proposal)
	if err != nil {
		return fmt.Errorf("failed to marshal proposal for property %d: %w", proposal.PropertyID, err)
	}
	if err := ctx.GetStub().PutState(proposalKey, proposalBytes); err != nil {
		return fmt.Errorf("failed to save proposal for property %d: %w", proposal.PropertyID, err)
	}
	return nil
}
