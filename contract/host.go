package contract

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// The registry consumes two host capabilities: a monotonic logical clock and
// an atomic value-transfer primitive. Both have production implementations
// backed by the transaction context, and both can be swapped on the contract
// struct so the core runs against a deterministic fake clock and an in-memory
// ledger in tests.

// Clock supplies the monotonically increasing logical height ("tick") used
// for creation timestamps, proposal expiry and rental-month bucketing.
type Clock interface {
	CurrentHeight() (uint64, error)
}

// Bank moves platform currency between accounts. Transfer must fail without
// side effects when `from` holds less than `amount`; Bank errors are
// propagated to callers unchanged rather than re-tagged.
type Bank interface {
	Transfer(amount uint64, from, to string) error
	Balance(account string) (uint64, error)
	Mint(amount uint64, to string) error
}

// ticksPerMinute pins the production clock granularity: one tick per minute
// of transaction time. A proposal duration of 1440 ticks is therefore about
// one day, and a rental month bucket of 43200 ticks about thirty days.
const ticksPerMinute = int64(60)

// txClock derives the height from the transaction timestamp supplied by the
// ordering service, which Fabric guarantees to be monotonic per channel.
type txClock struct {
	ctx contractapi.TransactionContextInterface
}

func (c *txClock) CurrentHeight() (uint64, error) {
	ts, err := c.ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	secs := ts.GetSeconds()
	if secs < 0 {
		return 0, fmt.Errorf("transaction timestamp is before the epoch: %d", secs)
	}
	return uint64(secs / ticksPerMinute), nil
}

// bankAccountObjectType namespaces currency balances in world state.
const bankAccountObjectType = "BankAccount"

// stateBank keeps currency balances in world state, one record per account,
// stored as a decimal string. Within a transaction its writes abort together
// with the rest of the read-write set, which is what makes the two transfers
// inside BuyShares a single atomic unit.
type stateBank struct {
	ctx contractapi.TransactionContextInterface
}

func (b *stateBank) balanceKey(account string) (string, error) {
	return b.ctx.GetStub().CreateCompositeKey(bankAccountObjectType, []string{account})
}

func (b *stateBank) Balance(account string) (uint64, error) {
	if account == "" {
		return 0, errors.New("bank: account cannot be empty")
	}
	key, err := b.balanceKey(account)
	if err != nil {
		return 0, fmt.Errorf("bank: failed to create balance key for '%s': %w", account, err)
	}
	raw, err := b.ctx.GetStub().GetState(key)
	if err != nil {
		return 0, fmt.Errorf("bank: ledger error reading balance for '%s': %w", account, err)
	}
	if raw == nil {
		return 0, nil
	}
	bal, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bank: corrupt balance record for '%s': %w", account, err)
	}
	return bal, nil
}

func (b *stateBank) putBalance(account string, balance uint64) error {
	key, err := b.balanceKey(account)
	if err != nil {
		return fmt.Errorf("bank: failed to create balance key for '%s': %w", account, err)
	}
	if err := b.ctx.GetStub().PutState(key, []byte(strconv.FormatUint(balance, 10))); err != nil {
		return fmt.Errorf("bank: failed to save balance for '%s': %w", account, err)
	}
	return nil
}

func (b *stateBank) Transfer(amount uint64, from, to string) error {
	if from == "" || to == "" {
		return errors.New("bank: transfer endpoints cannot be empty")
	}
	if amount == 0 || from == to {
		return nil
	}
	fromBal, err := b.Balance(from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("bank: account '%s' holds %d, cannot transfer %d", from, fromBal, amount)
	}
	toBal, err := b.Balance(to)
	if err != nil {
		return err
	}
	if err := b.putBalance(from, fromBal-amount); err != nil {
		return err
	}
	return b.putBalance(to, toBal+amount)
}

func (b *stateBank) Mint(amount uint64, to string) error {
	if to == "" {
		return errors.New("bank: mint target cannot be empty")
	}
	if amount == 0 {
		return nil
	}
	bal, err := b.Balance(to)
	if err != nil {
		return err
	}
	return b.putBalance(to, bal+amount)
}
