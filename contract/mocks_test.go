package contract

import (
	"crypto/x509"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"brickshare/model"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/hyperledger/fabric-protos-go/peer"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// In-memory stand-ins for the Fabric stub and client identity so the whole
// contract runs against a deterministic world state: sorted key iteration,
// Fabric-style composite keys, a settable transaction timestamp and caller.

const compositeKeySep = string(rune(0))

type mockStub struct {
	state   map[string][]byte
	history map[string][]*queryresult.KeyModification
	events  map[string][]byte
	txTime  time.Time
	txSeq   int
}

func newMockStub() *mockStub {
	return &mockStub{
		state:   map[string][]byte{},
		history: map[string][]*queryresult.KeyModification{},
		events:  map[string][]byte{},
		// Arbitrary fixed start time; tests reason in relative ticks.
		txTime: time.Unix(1_700_000_000, 0).UTC(),
	}
}

var _ shim.ChaincodeStubInterface = (*mockStub)(nil)

// heightNow mirrors txClock's tick derivation.
func (m *mockStub) heightNow() uint64 {
	return uint64(m.txTime.Unix() / ticksPerMinute)
}

// advanceTicks moves the transaction time forward by the given tick count.
func (m *mockStub) advanceTicks(ticks uint64) {
	m.txTime = m.txTime.Add(time.Duration(ticks) * time.Duration(ticksPerMinute) * time.Second)
}

func (m *mockStub) nextTxID() string {
	m.txSeq++
	return fmt.Sprintf("mocktx-%d", m.txSeq)
}

// stateSnapshot captures the world state so a failed transaction can be
// rewound. History is tracked by version count per key.
type stateSnapshot struct {
	state          map[string][]byte
	historyLengths map[string]int
	events         map[string][]byte
}

func (m *mockStub) snapshot() *stateSnapshot {
	s := &stateSnapshot{
		state:          make(map[string][]byte, len(m.state)),
		historyLengths: make(map[string]int, len(m.history)),
		events:         make(map[string][]byte, len(m.events)),
	}
	for key, value := range m.state {
		s.state[key] = value
	}
	for key, versions := range m.history {
		s.historyLengths[key] = len(versions)
	}
	for name, payload := range m.events {
		s.events[name] = payload
	}
	return s
}

func (m *mockStub) restore(s *stateSnapshot) {
	m.state = make(map[string][]byte, len(s.state))
	for key, value := range s.state {
		m.state[key] = value
	}
	for key, versions := range m.history {
		if n, ok := s.historyLengths[key]; ok {
			m.history[key] = versions[:n]
		} else {
			delete(m.history, key)
		}
	}
	m.events = make(map[string][]byte, len(s.events))
	for name, payload := range s.events {
		m.events[name] = payload
	}
}

// --- State access ---

func (m *mockStub) GetState(key string) ([]byte, error) {
	value, ok := m.state[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *mockStub) PutState(key string, value []byte) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.state[key] = stored
	m.history[key] = append(m.history[key], &queryresult.KeyModification{
		TxId:      m.nextTxID(),
		Value:     stored,
		Timestamp: timestamppb.New(m.txTime),
	})
	return nil
}

func (m *mockStub) DelState(key string) error {
	delete(m.state, key)
	m.history[key] = append(m.history[key], &queryresult.KeyModification{
		TxId:      m.nextTxID(),
		Timestamp: timestamppb.New(m.txTime),
		IsDelete:  true,
	})
	return nil
}

// --- Composite keys (Fabric's null-separated format) ---

func (m *mockStub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	if objectType == "" {
		return "", errors.New("objectType cannot be empty")
	}
	key := compositeKeySep + objectType + compositeKeySep
	for _, attr := range attributes {
		key += attr + compositeKeySep
	}
	return key, nil
}

func (m *mockStub) SplitCompositeKey(compositeKey string) (string, []string, error) {
	parts := strings.Split(compositeKey, compositeKeySep)
	if len(parts) < 3 || parts[0] != "" {
		return "", nil, fmt.Errorf("invalid composite key '%s'", compositeKey)
	}
	return parts[1], parts[2 : len(parts)-1], nil
}

func (m *mockStub) sortedKeysWithPrefix(prefix string) []string {
	keys := []string{}
	for key := range m.state {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *mockStub) kvsForKeys(keys []string) []*queryresult.KV {
	kvs := make([]*queryresult.KV, 0, len(keys))
	for _, key := range keys {
		kvs = append(kvs, &queryresult.KV{Key: key, Value: m.state[key]})
	}
	return kvs
}

func (m *mockStub) GetStateByPartialCompositeKey(objectType string, attributes []string) (shim.StateQueryIteratorInterface, error) {
	prefix, err := m.CreateCompositeKey(objectType, attributes)
	if err != nil {
		return nil, err
	}
	return &mockKVIterator{kvs: m.kvsForKeys(m.sortedKeysWithPrefix(prefix))}, nil
}

func (m *mockStub) GetStateByPartialCompositeKeyWithPagination(objectType string, attributes []string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	prefix, err := m.CreateCompositeKey(objectType, attributes)
	if err != nil {
		return nil, nil, err
	}
	keys := m.sortedKeysWithPrefix(prefix)
	start := 0
	if bookmark != "" {
		for start < len(keys) && keys[start] < bookmark {
			start++
		}
	}
	end := start + int(pageSize)
	if end > len(keys) {
		end = len(keys)
	}
	next := ""
	if end < len(keys) {
		next = keys[end]
	}
	page := keys[start:end]
	metadata := &peer.QueryResponseMetadata{
		FetchedRecordsCount: int32(len(page)),
		Bookmark:            next,
	}
	return &mockKVIterator{kvs: m.kvsForKeys(page)}, metadata, nil
}

func (m *mockStub) GetStateByRange(startKey, endKey string) (shim.StateQueryIteratorInterface, error) {
	keys := []string{}
	for key := range m.state {
		if (startKey == "" || key >= startKey) && (endKey == "" || key < endKey) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return &mockKVIterator{kvs: m.kvsForKeys(keys)}, nil
}

func (m *mockStub) GetStateByRangeWithPagination(startKey, endKey string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	return nil, nil, errors.New("not implemented in mock")
}

func (m *mockStub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	versions := m.history[key]
	return &mockHistoryIterator{mods: versions}, nil
}

// --- Transaction metadata ---

func (m *mockStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(m.txTime), nil
}

func (m *mockStub) SetEvent(name string, payload []byte) error {
	if name == "" {
		return errors.New("event name cannot be empty")
	}
	m.events[name] = payload
	return nil
}

func (m *mockStub) GetTxID() string      { return fmt.Sprintf("mocktx-%d", m.txSeq) }
func (m *mockStub) GetChannelID() string { return "mockchannel" }

// --- Unused interface surface ---

func (m *mockStub) GetArgs() [][]byte                   { return nil }
func (m *mockStub) GetStringArgs() []string             { return nil }
func (m *mockStub) GetFunctionAndParameters() (string, []string) { return "", nil }
func (m *mockStub) GetArgsSlice() ([]byte, error)       { return nil, nil }
func (m *mockStub) InvokeChaincode(chaincodeName string, args [][]byte, channel string) peer.Response {
	return peer.Response{Status: shim.ERROR, Message: "not implemented in mock"}
}
func (m *mockStub) SetStateValidationParameter(key string, ep []byte) error { return nil }
func (m *mockStub) GetStateValidationParameter(key string) ([]byte, error)  { return nil, nil }
func (m *mockStub) GetQueryResult(query string) (shim.StateQueryIteratorInterface, error) {
	return nil, errors.New("rich queries not supported in mock")
}
func (m *mockStub) GetQueryResultWithPagination(query string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	return nil, nil, errors.New("rich queries not supported in mock")
}
func (m *mockStub) GetPrivateData(collection, key string) ([]byte, error)      { return nil, nil }
func (m *mockStub) GetPrivateDataHash(collection, key string) ([]byte, error)  { return nil, nil }
func (m *mockStub) PutPrivateData(collection string, key string, value []byte) error { return nil }
func (m *mockStub) DelPrivateData(collection, key string) error                { return nil }
func (m *mockStub) PurgePrivateData(collection, key string) error              { return nil }
func (m *mockStub) SetPrivateDataValidationParameter(collection, key string, ep []byte) error {
	return nil
}
func (m *mockStub) GetPrivateDataValidationParameter(collection, key string) ([]byte, error) {
	return nil, nil
}
func (m *mockStub) GetPrivateDataByRange(collection, startKey, endKey string) (shim.StateQueryIteratorInterface, error) {
	return nil, errors.New("private data not supported in mock")
}
func (m *mockStub) GetPrivateDataByPartialCompositeKey(collection, objectType string, keys []string) (shim.StateQueryIteratorInterface, error) {
	return nil, errors.New("private data not supported in mock")
}
func (m *mockStub) GetPrivateDataQueryResult(collection, query string) (shim.StateQueryIteratorInterface, error) {
	return nil, errors.New("private data not supported in mock")
}
func (m *mockStub) GetCreator() ([]byte, error)              { return nil, nil }
func (m *mockStub) GetTransient() (map[string][]byte, error) { return nil, nil }
func (m *mockStub) GetBinding() ([]byte, error)              { return nil, nil }
func (m *mockStub) GetDecorations() map[string][]byte        { return nil }
func (m *mockStub) GetSignedProposal() (*peer.SignedProposal, error) { return nil, nil }

// --- Iterators ---

type mockKVIterator struct {
	kvs []*queryresult.KV
	idx int
}

func (it *mockKVIterator) HasNext() bool { return it.idx < len(it.kvs) }
func (it *mockKVIterator) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, errors.New("no more items")
	}
	kv := it.kvs[it.idx]
	it.idx++
	return kv, nil
}
func (it *mockKVIterator) Close() error { return nil }

type mockHistoryIterator struct {
	mods []*queryresult.KeyModification
	idx  int
}

func (it *mockHistoryIterator) HasNext() bool { return it.idx < len(it.mods) }
func (it *mockHistoryIterator) Next() (*queryresult.KeyModification, error) {
	if !it.HasNext() {
		return nil, errors.New("no more items")
	}
	mod := it.mods[it.idx]
	it.idx++
	return mod, nil
}
func (it *mockHistoryIterator) Close() error { return nil }

// --- Client identity ---

type mockClientIdentity struct {
	id    string
	mspID string
}

var _ cid.ClientIdentity = (*mockClientIdentity)(nil)

func (c *mockClientIdentity) GetID() (string, error)    { return c.id, nil }
func (c *mockClientIdentity) GetMSPID() (string, error) { return c.mspID, nil }
func (c *mockClientIdentity) GetAttributeValue(attrName string) (string, bool, error) {
	return "", false, nil
}
func (c *mockClientIdentity) AssertAttributeValue(attrName, attrValue string) error { return nil }
func (c *mockClientIdentity) GetX509Certificate() (*x509.Certificate, error)        { return nil, nil }

// --- Transaction context ---

type mockTransactionContext struct {
	stub     *mockStub
	identity *mockClientIdentity
}

func (ctx *mockTransactionContext) GetStub() shim.ChaincodeStubInterface { return ctx.stub }
func (ctx *mockTransactionContext) GetClientIdentity() cid.ClientIdentity {
	return ctx.identity
}

// --- Harness ---

// testFullID builds an X.509-style full ID whose CN is the alias, so the
// contract's CN fallback resolves unregistered callers to a readable alias.
func testFullID(alias string) string {
	return fmt.Sprintf("x509::OU=client::CN=%s", alias)
}

type registryHarness struct {
	t        *testing.T
	contract *BrickshareSmartContract
	stub     *mockStub
	ctx      *mockTransactionContext
}

func newHarness(t *testing.T) *registryHarness {
	t.Helper()
	stub := newMockStub()
	return &registryHarness{
		t:        t,
		contract: &BrickshareSmartContract{},
		stub:     stub,
		ctx:      &mockTransactionContext{stub: stub, identity: &mockClientIdentity{mspID: "MockMSP"}},
	}
}

// as switches the transaction invoker and returns the shared context.
func (h *registryHarness) as(alias string) *mockTransactionContext {
	h.ctx.identity.id = testFullID(alias)
	return h.ctx
}

// invoke runs one contract call as a transaction: when the call returns an
// error every write it made is discarded, matching how the peer only applies
// a read-write set for transactions that succeed.
func (h *registryHarness) invoke(fn func() error) error {
	before := h.stub.snapshot()
	if err := fn(); err != nil {
		h.stub.restore(before)
		return err
	}
	return nil
}

// bootstrap runs BootstrapLedger as "admin"; the admin is also the treasury.
func (h *registryHarness) bootstrap() {
	h.t.Helper()
	if err := h.contract.BootstrapLedger(h.as("admin")); err != nil {
		h.t.Fatalf("bootstrap failed: %v", err)
	}
}

func (h *registryHarness) mint(alias string, amount uint64) {
	h.t.Helper()
	if err := h.contract.MintFunds(h.as("admin"), testFullID(alias), amount); err != nil {
		h.t.Fatalf("mint for %s failed: %v", alias, err)
	}
}

func (h *registryHarness) balance(alias string) uint64 {
	h.t.Helper()
	bal, err := h.contract.GetAccountBalance(h.as(alias), testFullID(alias))
	if err != nil {
		h.t.Fatalf("balance query for %s failed: %v", alias, err)
	}
	return bal
}

// listDemoProperty lists the canonical 1,000,000-price, 1,000-share property
// as alice and returns its id.
func (h *registryHarness) listDemoProperty() uint64 {
	h.t.Helper()
	id, err := h.contract.ListProperty(h.as("alice"), 1_000_000, 1_000, "12 Harbour Lane", "Two-bed waterfront flat")
	if err != nil {
		h.t.Fatalf("listing demo property failed: %v", err)
	}
	return id
}

func (h *registryHarness) buy(alias string, id, amount uint64) {
	h.t.Helper()
	if err := h.contract.BuyShares(h.as(alias), id, amount); err != nil {
		h.t.Fatalf("%s buying %d shares of property %d failed: %v", alias, amount, id, err)
	}
}

func (h *registryHarness) shares(alias string, id uint64) uint64 {
	h.t.Helper()
	bal, err := h.contract.GetShareBalance(h.as(alias), id, testFullID(alias))
	if err != nil {
		h.t.Fatalf("share balance query for %s failed: %v", alias, err)
	}
	return bal
}

func (h *registryHarness) property(id uint64) *model.Property {
	h.t.Helper()
	property, err := h.contract.GetPropertyDetails(h.ctx, id)
	if err != nil {
		h.t.Fatalf("property details query for %d failed: %v", id, err)
	}
	if property == nil {
		h.t.Fatalf("property %d not found", id)
	}
	return property
}

// requireCode asserts that err carries the given registry error tag.
func requireCode(t *testing.T, err error, want ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected a %s error, got nil", want)
	}
	got, ok := CodeOf(err)
	if !ok {
		t.Fatalf("expected a tagged registry error with code %s, got untagged: %v", want, err)
	}
	if got != want {
		t.Fatalf("expected error code %s, got %s: %v", want, got, err)
	}
}
