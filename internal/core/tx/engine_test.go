package tx

import (
	"testing"

	addresscodec "github.com/tokenvault/tokenvaultd/internal/codec/address-codec"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/native"
	"github.com/tokenvault/tokenvaultd/internal/crypto"
)

// mockLedgerView implements LedgerView for testing
type mockLedgerView struct {
	data map[[32]byte][]byte
}

func newMockLedgerView() *mockLedgerView {
	return &mockLedgerView{data: make(map[[32]byte][]byte)}
}

func (m *mockLedgerView) Read(k keylet.Keylet) ([]byte, error) {
	if data, ok := m.data[k.Key]; ok {
		return data, nil
	}
	return nil, nil
}

func (m *mockLedgerView) Exists(k keylet.Keylet) (bool, error) {
	_, ok := m.data[k.Key]
	return ok, nil
}

func (m *mockLedgerView) Insert(k keylet.Keylet, data []byte) error {
	m.data[k.Key] = data
	return nil
}

func (m *mockLedgerView) Update(k keylet.Keylet, data []byte) error {
	m.data[k.Key] = data
	return nil
}

func (m *mockLedgerView) Erase(k keylet.Keylet) error {
	delete(m.data, k.Key)
	return nil
}

func (m *mockLedgerView) ForEach(fn func(key [32]byte, data []byte) bool) error {
	for k, v := range m.data {
		if !fn(k, v) {
			break
		}
	}
	return nil
}

func newTestAddress(t *testing.T) (string, [20]byte) {
	t.Helper()
	kp, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	id := crypto.AccountID(kp.PublicKey)
	return addresscodec.Encode(id), id
}

func seedAccount(t *testing.T, view *mockLedgerView, id [20]byte, balance native.Amount, sequence uint32) {
	t.Helper()
	data, err := SerializeAccountRoot(&AccountRoot{
		AccountID: id,
		Balance:   balance,
		Sequence:  sequence,
	})
	if err != nil {
		t.Fatalf("SerializeAccountRoot failed: %v", err)
	}
	if err := view.Insert(keylet.Account(id), data); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
}

func readAccount(t *testing.T, view *mockLedgerView, id [20]byte) *AccountRoot {
	t.Helper()
	data, err := view.Read(keylet.Account(id))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if data == nil {
		t.Fatalf("account %x not found", id)
	}
	account, err := ParseAccountRoot(data)
	if err != nil {
		t.Fatalf("ParseAccountRoot failed: %v", err)
	}
	return account
}

func newTestEngine(view LedgerView) *Engine {
	return NewEngine(view, EngineConfig{
		LedgerSequence:            3,
		SkipSignatureVerification: true,
		Standalone:                true,
	})
}

func TestPaymentCreatesDestination(t *testing.T) {
	view := newMockLedgerView()
	srcAddr, srcID := newTestAddress(t)
	dstAddr, dstID := newTestAddress(t)
	seedAccount(t, view, srcID, 1000, 5)

	payment := NewPayment(srcAddr, dstAddr, 400)
	payment.SetSequence(5)

	result := newTestEngine(view).Apply(payment)
	if result.Result != TesSUCCESS {
		t.Fatalf("Apply = %s, want tesSUCCESS", result.Result)
	}
	if !result.Applied {
		t.Error("expected transaction to be applied")
	}
	if result.Metadata == nil || len(result.Metadata.AffectedNodes) == 0 {
		t.Error("expected metadata with affected nodes")
	}

	src := readAccount(t, view, srcID)
	if src.Balance != 600 {
		t.Errorf("source balance = %d, want 600", src.Balance)
	}
	if src.Sequence != 6 {
		t.Errorf("source sequence = %d, want 6", src.Sequence)
	}
	if src.PreviousTxnID != result.TxHash {
		t.Error("source PreviousTxnID not set to the transaction hash")
	}

	dst := readAccount(t, view, dstID)
	if dst.Balance != 400 {
		t.Errorf("destination balance = %d, want 400", dst.Balance)
	}
	if dst.Sequence != 1 {
		t.Errorf("destination sequence = %d, want 1", dst.Sequence)
	}
}

func TestPaymentToExistingDestination(t *testing.T) {
	view := newMockLedgerView()
	srcAddr, srcID := newTestAddress(t)
	dstAddr, dstID := newTestAddress(t)
	seedAccount(t, view, srcID, 1000, 1)
	seedAccount(t, view, dstID, 250, 7)

	payment := NewPayment(srcAddr, dstAddr, 100)
	payment.SetSequence(1)

	result := newTestEngine(view).Apply(payment)
	if result.Result != TesSUCCESS {
		t.Fatalf("Apply = %s, want tesSUCCESS", result.Result)
	}

	dst := readAccount(t, view, dstID)
	if dst.Balance != 350 {
		t.Errorf("destination balance = %d, want 350", dst.Balance)
	}
	if dst.Sequence != 7 {
		t.Errorf("destination sequence = %d, want 7 (unchanged)", dst.Sequence)
	}
}

// A tec result consumes the sequence number but none of the staged
// effects reach the ledger.
func TestPaymentUnfundedConsumesSequence(t *testing.T) {
	view := newMockLedgerView()
	srcAddr, srcID := newTestAddress(t)
	dstAddr, dstID := newTestAddress(t)
	seedAccount(t, view, srcID, 50, 2)

	payment := NewPayment(srcAddr, dstAddr, 1000)
	payment.SetSequence(2)

	result := newTestEngine(view).Apply(payment)
	if result.Result != TecUNFUNDED {
		t.Fatalf("Apply = %s, want tecUNFUNDED", result.Result)
	}
	if !result.Applied {
		t.Error("tec results claim the sequence and count as applied")
	}

	src := readAccount(t, view, srcID)
	if src.Balance != 50 {
		t.Errorf("source balance = %d, want 50 (unchanged)", src.Balance)
	}
	if src.Sequence != 3 {
		t.Errorf("source sequence = %d, want 3 (consumed)", src.Sequence)
	}
	if exists, _ := view.Exists(keylet.Account(dstID)); exists {
		t.Error("destination account must not be created on failure")
	}
}

func TestPaymentUnknownSource(t *testing.T) {
	view := newMockLedgerView()
	srcAddr, _ := newTestAddress(t)
	dstAddr, _ := newTestAddress(t)

	payment := NewPayment(srcAddr, dstAddr, 100)
	payment.SetSequence(1)

	result := newTestEngine(view).Apply(payment)
	if result.Result != TerNO_ACCOUNT {
		t.Errorf("Apply = %s, want terNO_ACCOUNT", result.Result)
	}
	if result.Applied {
		t.Error("transaction must not be applied")
	}
}

func TestSequenceChecks(t *testing.T) {
	view := newMockLedgerView()
	srcAddr, srcID := newTestAddress(t)
	dstAddr, _ := newTestAddress(t)
	seedAccount(t, view, srcID, 1000, 5)
	engine := newTestEngine(view)

	past := NewPayment(srcAddr, dstAddr, 100)
	past.SetSequence(4)
	if result := engine.Apply(past); result.Result != TefPAST_SEQ {
		t.Errorf("past sequence = %s, want tefPAST_SEQ", result.Result)
	}

	future := NewPayment(srcAddr, dstAddr, 100)
	future.SetSequence(6)
	if result := engine.Apply(future); result.Result != TerPRE_SEQ {
		t.Errorf("future sequence = %s, want terPRE_SEQ", result.Result)
	}

	// Neither attempt may touch the account
	src := readAccount(t, view, srcID)
	if src.Sequence != 5 || src.Balance != 1000 {
		t.Errorf("account changed: sequence=%d balance=%d", src.Sequence, src.Balance)
	}
}

func TestPreflightRejections(t *testing.T) {
	view := newMockLedgerView()
	srcAddr, srcID := newTestAddress(t)
	dstAddr, _ := newTestAddress(t)
	seedAccount(t, view, srcID, 1000, 1)
	engine := newTestEngine(view)

	noSeq := NewPayment(srcAddr, dstAddr, 100)
	if result := engine.Apply(noSeq); result.Result != TemBAD_SEQUENCE {
		t.Errorf("missing sequence = %s, want temBAD_SEQUENCE", result.Result)
	}

	noDst := NewPayment(srcAddr, "", 100)
	noDst.SetSequence(1)
	if result := engine.Apply(noDst); result.Result != TemDST_NEEDED {
		t.Errorf("missing destination = %s, want temDST_NEEDED", result.Result)
	}

	selfPay := NewPayment(srcAddr, srcAddr, 100)
	selfPay.SetSequence(1)
	if result := engine.Apply(selfPay); result.Result != TemDST_IS_SRC {
		t.Errorf("self payment = %s, want temDST_IS_SRC", result.Result)
	}

	zero := NewPayment(srcAddr, dstAddr, 0)
	zero.SetSequence(1)
	if result := engine.Apply(zero); result.Result != TemBAD_AMOUNT {
		t.Errorf("zero amount = %s, want temBAD_AMOUNT", result.Result)
	}
}

func TestLastLedgerSequence(t *testing.T) {
	view := newMockLedgerView()
	srcAddr, srcID := newTestAddress(t)
	dstAddr, _ := newTestAddress(t)
	seedAccount(t, view, srcID, 1000, 1)
	engine := newTestEngine(view)

	expired := NewPayment(srcAddr, dstAddr, 100)
	expired.SetSequence(1)
	expired.SetLastLedgerSequence(2)
	if result := engine.Apply(expired); result.Result != TefMAX_LEDGER {
		t.Errorf("expired transaction = %s, want tefMAX_LEDGER", result.Result)
	}

	live := NewPayment(srcAddr, dstAddr, 100)
	live.SetSequence(1)
	live.SetLastLedgerSequence(10)
	if result := engine.Apply(live); result.Result != TesSUCCESS {
		t.Errorf("live transaction = %s, want tesSUCCESS", result.Result)
	}
}
