package contract

import (
	"encoding/json"
	"fmt"

	"brickshare/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Rental Income Operations ---

// RecordRentalPayment books rental income against a property. The per-month
// record is overwritten when the same bucket is recorded twice, but the
// cumulative RentalIncome accumulator always grows by the full amount.
func (s *BrickshareSmartContract) RecordRentalPayment(ctx contractapi.TransactionContextInterface, id uint64, amount uint64) error {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("RecordRentalPayment: failed to get actor info: %w", err)
	}

	property, err := s.getPropertyByID(ctx, id)
	if err != nil {
		return err
	}
	if property.Owner != actor.fullID {
		return registryErrorf(CodeUnauthorized, "caller '%s' is not the owner of property %d", actor.fullID, id)
	}

	height, err := s.currentHeight(ctx)
	if err != nil {
		return fmt.Errorf("RecordRentalPayment: failed to get height: %w", err)
	}
	monthBucket := height / ticksPerMonth

	record := model.RentalRecord{
		ObjectType:  rentalRecordObjectType,
		PropertyID:  id,
		MonthBucket: monthBucket,
		Amount:      amount,
		RecordedBy:  actor.fullID,
		RecordedAt:  height,
	}
	recordKey, err := s.createRentalRecordCompositeKey(ctx, id, monthBucket)
	if err != nil {
		return fmt.Errorf("RecordRentalPayment: failed to create rental record key: %w", err)
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("RecordRentalPayment: failed to marshal rental record: %w", err)
	}
	if err := ctx.GetStub().PutState(recordKey, recordBytes); err != nil {
		return fmt.Errorf("RecordRentalPayment: failed to save rental record: %w", err)
	}

	property.RentalIncome += amount
	if err := s.putProperty(ctx, property); err != nil {
		return fmt.Errorf("RecordRentalPayment: %w", err)
	}

	s.emitRegistryEvent(ctx, "RentalRecorded", map[string]interface{}{
		"propertyId":   id,
		"monthBucket":  monthBucket,
		"amount":       amount,
		"rentalIncome": property.RentalIncome,
	})
	logger.Infof("Rental payment of %d recorded on property %d (bucket %d, cumulative %d)", amount, id, monthBucket, property.RentalIncome)
	return nil
}

// DistributeRentalIncome pays the caller the unclaimed portion of their
// pro-rata rental entitlement from the treasury. The entitlement is
// rentalIncome * holderShares / totalShares (truncating); a per-holder claim
// record high-water-marks what has already been paid, so repeat calls with no
// new income pay nothing.
func (s *BrickshareSmartContract) DistributeRentalIncome(ctx contractapi.TransactionContextInterface, id uint64) (uint64, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("DistributeRentalIncome: failed to get actor info: %w", err)
	}

	property, err := s.getPropertyByID(ctx, id)
	if err != nil {
		return 0, err
	}

	holderShares, err := s.getShareBalanceValue(ctx, id, actor.fullID)
	if err != nil {
		return 0, fmt.Errorf("DistributeRentalIncome: %w", err)
	}
	if holderShares == 0 {
		return 0, registryErrorf(CodeUnauthorized, "caller '%s' holds no shares of property %d", actor.fullID, id)
	}

	entitlement := property.RentalIncome * holderShares / property.TotalShares

	claim, err := s.getRentalClaim(ctx, id, actor.fullID)
	if err != nil {
		return 0, fmt.Errorf("DistributeRentalIncome: %w", err)
	}
	if entitlement <= claim.Claimed {
		logger.Debugf("Holder '%s' has no unclaimed rental income on property %d (entitlement %d, claimed %d)", actor.alias, id, entitlement, claim.Claimed)
		return 0, nil
	}
	payout := entitlement - claim.Claimed

	cfg, err := s.getPlatformConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("DistributeRentalIncome: %w", err)
	}
	if err := s.bank(ctx).Transfer(payout, cfg.Treasury, actor.fullID); err != nil {
		return 0, err
	}

	claim.Claimed = entitlement
	if err := s.putRentalClaim(ctx, claim); err != nil {
		return 0, fmt.Errorf("DistributeRentalIncome: %w", err)
	}

	s.emitRegistryEvent(ctx, "RentalDistributed", map[string]interface{}{
		"propertyId":  id,
		"holder":      actor.fullID,
		"holderAlias": actor.alias,
		"payout":      payout,
		"claimed":     claim.Claimed,
	})
	logger.Infof("Distributed %d rental income to '%s' for property %d (claimed total %d)", payout, actor.alias, id, claim.Claimed)
	return payout, nil
}

// GetRentalRecord is a pure lookup of one month bucket; nil when absent.
func (s *BrickshareSmartContract) GetRentalRecord(ctx contractapi.TransactionContextInterface, id uint64, monthBucket uint64) (*model.RentalRecord, error) {
	recordKey, err := s.createRentalRecordCompositeKey(ctx, id, monthBucket)
	if err != nil {
		return nil, fmt.Errorf("GetRentalRecord: failed to create rental record key: %w", err)
	}
	raw, err := ctx.GetStub().GetState(recordKey)
	if err != nil {
		return nil, fmt.Errorf("GetRentalRecord: ledger error reading rental record: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var record model.RentalRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("GetRentalRecord: failed to unmarshal rental record: %w", err)
	}
	return &record, nil
}

func (s *BrickshareSmartContract) getRentalClaim(ctx contractapi.TransactionContextInterface, id uint64, holderFullID string) (*model.RentalClaim, error) {
	claimKey, err := s.createRentalClaimCompositeKey(ctx, id, holderFullID)
	if err != nil {
		return nil, fmt.Errorf("failed to create rental claim key for property %d holder '%s': %w", id, holderFullID, err)
	}
	raw, err := ctx.GetStub().GetState(claimKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading rental claim for property %d holder '%s': %w", id, holderFullID, err)
	}
	claim := &model.RentalClaim{
		ObjectType: rentalClaimObjectType,
		PropertyID: id,
		Holder:     holderFullID,
		Claimed:    0,
	}
	if raw == nil {
		return claim, nil
	}
	if err := json.Unmarshal(raw, claim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rental claim for property %d holder '%s': %w", id, holderFullID, err)
	}
	return claim, nil
}

func (s *BrickshareSmartContract) putRentalClaim(ctx contractapi.TransactionContextInterface, claim *model.RentalClaim) error {
	claimKey, err := s.createRentalClaimCompositeKey(ctx, claim.PropertyID, claim.Holder)
	if err != nil {
		return fmt.Errorf("failed to create rental claim key for property %d holder '%s': %w", claim.PropertyID, claim.Holder, err)
	}
	claimBytes, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to marshal rental claim for property %d holder '%s': %w", claim.PropertyID, claim.Holder, err)
	}
	if err := ctx.GetStub().PutState(claimKey, claimBytes); err != nil {
		return fmt.Errorf("failed to save rental claim for property %d holder '%s': %w", claim.PropertyID, claim.Holder, err)
	}
	return nil
}
