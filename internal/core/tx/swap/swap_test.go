package swap

import (
	"encoding/hex"
	"testing"

	addresscodec "github.com/tokenvault/tokenvaultd/internal/codec/address-codec"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/native"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
	"github.com/tokenvault/tokenvaultd/internal/core/tx/vault"
	"github.com/tokenvault/tokenvaultd/internal/crypto"
)

// testView implements tx.LedgerView backed by a map
type testView struct {
	data map[[32]byte][]byte
}

func newTestView() *testView {
	return &testView{data: make(map[[32]byte][]byte)}
}

func (v *testView) Read(k keylet.Keylet) ([]byte, error) {
	if data, ok := v.data[k.Key]; ok {
		return data, nil
	}
	return nil, nil
}

func (v *testView) Exists(k keylet.Keylet) (bool, error) {
	_, ok := v.data[k.Key]
	return ok, nil
}

func (v *testView) Insert(k keylet.Keylet, data []byte) error {
	v.data[k.Key] = data
	return nil
}

func (v *testView) Update(k keylet.Keylet, data []byte) error {
	v.data[k.Key] = data
	return nil
}

func (v *testView) Erase(k keylet.Keylet) error {
	delete(v.data, k.Key)
	return nil
}

func (v *testView) ForEach(fn func(key [32]byte, data []byte) bool) error {
	for k, d := range v.data {
		if !fn(k, d) {
			break
		}
	}
	return nil
}

// swapEnv holds a seller with one asset unit and a funded buyer, and
// applies transactions with per-account sequence tracking.
type swapEnv struct {
	t        *testing.T
	view     *testView
	engine   *tx.Engine
	seller   string
	sellerID [20]byte
	buyer    string
	buyerID  [20]byte
	asset    [32]byte
	assetID  string
	seqs     map[string]uint32
}

func newSwapEnv(t *testing.T, buyerFunds native.Amount) *swapEnv {
	t.Helper()
	view := newTestView()
	env := &swapEnv{
		t:    t,
		view: view,
		seqs: make(map[string]uint32),
	}

	env.seller, env.sellerID = env.newAccount(1000)
	env.buyer, env.buyerID = env.newAccount(buyerFunds)

	assetKey := keylet.Asset(env.sellerID, 7)
	assetData, err := tx.SerializeAsset(&tx.AssetRecord{
		AssetID: assetKey.Key,
		Issuer:  env.sellerID,
		Supply:  1,
		Name:    "Deed",
		Symbol:  "DEED",
	})
	if err != nil {
		t.Fatalf("SerializeAsset failed: %v", err)
	}
	if err := view.Insert(assetKey, assetData); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	env.asset = assetKey.Key
	env.assetID = hex.EncodeToString(assetKey.Key[:])

	holdingData, err := tx.SerializeHolding(&tx.HoldingRecord{
		Asset:     env.asset,
		Authority: env.sellerID,
		Balance:   1,
	})
	if err != nil {
		t.Fatalf("SerializeHolding failed: %v", err)
	}
	if err := view.Insert(keylet.Holding(env.asset, env.sellerID), holdingData); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	env.engine = tx.NewEngine(view, tx.EngineConfig{
		LedgerSequence:            2,
		SkipSignatureVerification: true,
		Standalone:                true,
	})
	return env
}

func (e *swapEnv) newAccount(balance native.Amount) (string, [20]byte) {
	e.t.Helper()
	kp, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	if err != nil {
		e.t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	id := crypto.AccountID(kp.PublicKey)
	addr := addresscodec.Encode(id)
	data, err := tx.SerializeAccountRoot(&tx.AccountRoot{
		AccountID: id,
		Balance:   balance,
		Sequence:  1,
	})
	if err != nil {
		e.t.Fatalf("SerializeAccountRoot failed: %v", err)
	}
	if err := e.view.Insert(keylet.Account(id), data); err != nil {
		e.t.Fatalf("Insert failed: %v", err)
	}
	e.seqs[addr] = 1
	return addr, id
}

// apply submits a transaction for the given account, tracking its
// sequence. Returns the result together with the sequence that was used.
func (e *swapEnv) apply(account string, txn tx.Transaction) (tx.ApplyResult, uint32) {
	e.t.Helper()
	seq := e.seqs[account]
	txn.GetCommon().SetSequence(seq)
	result := e.engine.Apply(txn)
	if result.Applied {
		e.seqs[account] = seq + 1
	}
	return result, seq
}

func (e *swapEnv) createSwap(price native.Amount) (string, keylet.Keylet) {
	e.t.Helper()
	result, seq := e.apply(e.seller, NewSwapCreate(e.seller, e.assetID, price))
	if result.Result != tx.TesSUCCESS {
		e.t.Fatalf("SwapCreate = %s, want tesSUCCESS", result.Result)
	}
	swapKey := keylet.Swap(e.sellerID, seq)
	return hex.EncodeToString(swapKey.Key[:]), swapKey
}

func (e *swapEnv) swap(key keylet.Keylet) *tx.SwapRecord {
	e.t.Helper()
	data, err := e.view.Read(key)
	if err != nil || data == nil {
		e.t.Fatalf("swap record not found: %v", err)
	}
	swap, err := tx.ParseSwap(data)
	if err != nil {
		e.t.Fatalf("ParseSwap failed: %v", err)
	}
	return swap
}

func (e *swapEnv) balance(id [20]byte) native.Amount {
	e.t.Helper()
	data, err := e.view.Read(keylet.Account(id))
	if err != nil || data == nil {
		e.t.Fatalf("account not found: %v", err)
	}
	account, err := tx.ParseAccountRoot(data)
	if err != nil {
		e.t.Fatalf("ParseAccountRoot failed: %v", err)
	}
	return account.Balance
}

func (e *swapEnv) holdingBalance(authority [20]byte) uint64 {
	e.t.Helper()
	data, err := e.view.Read(keylet.Holding(e.asset, authority))
	if err != nil {
		e.t.Fatalf("Read failed: %v", err)
	}
	if data == nil {
		return 0
	}
	holding, err := tx.ParseHolding(data)
	if err != nil {
		e.t.Fatalf("ParseHolding failed: %v", err)
	}
	return uint64(holding.Balance)
}

func TestSwapCreate(t *testing.T) {
	env := newSwapEnv(t, 1000)

	_, swapKey := env.createSwap(250)

	swap := env.swap(swapKey)
	if swap.Status != tx.SwapOpen {
		t.Errorf("swap status = %s, want open", swap.Status)
	}
	if swap.Seller != env.sellerID {
		t.Error("swap seller mismatch")
	}
	if swap.Price != 250 {
		t.Errorf("swap price = %d, want 250", swap.Price)
	}
}

func TestSwapCreateUnknownAsset(t *testing.T) {
	env := newSwapEnv(t, 1000)
	missing := hex.EncodeToString(make([]byte, 32))

	result, _ := env.apply(env.seller, NewSwapCreate(env.seller, missing, 250))
	if result.Result != tx.TecNO_ENTRY {
		t.Errorf("SwapCreate = %s, want tecNO_ENTRY", result.Result)
	}
}

func TestSwapCreateWithoutHolding(t *testing.T) {
	env := newSwapEnv(t, 1000)

	// Listing moves nothing, so anyone may list an existing asset; the
	// seller's ability to deliver is checked at execution time
	result, seq := env.apply(env.buyer, NewSwapCreate(env.buyer, env.assetID, 250))
	if result.Result != tx.TesSUCCESS {
		t.Fatalf("SwapCreate = %s, want tesSUCCESS", result.Result)
	}

	swapKey := keylet.Swap(env.buyerID, seq)
	swapID := hex.EncodeToString(swapKey.Key[:])
	execResult, _ := env.apply(env.seller, NewSwapExecute(env.seller, swapID))
	if execResult.Result != tx.TecNO_ENTRY {
		t.Errorf("SwapExecute = %s, want tecNO_ENTRY", execResult.Result)
	}
}

func TestSwapExecute(t *testing.T) {
	env := newSwapEnv(t, 1000)
	swapID, swapKey := env.createSwap(250)

	result, _ := env.apply(env.buyer, NewSwapExecute(env.buyer, swapID))
	if result.Result != tx.TesSUCCESS {
		t.Fatalf("SwapExecute = %s, want tesSUCCESS", result.Result)
	}

	// Payment settled and the unit changed hands in the same step
	if got := env.balance(env.buyerID); got != 750 {
		t.Errorf("buyer balance = %d, want 750", got)
	}
	if got := env.balance(env.sellerID); got != 1250 {
		t.Errorf("seller balance = %d, want 1250", got)
	}
	if got := env.holdingBalance(env.sellerID); got != 0 {
		t.Errorf("seller holding = %d, want 0", got)
	}
	if got := env.holdingBalance(env.buyerID); got != 1 {
		t.Errorf("buyer holding = %d, want 1", got)
	}
	if status := env.swap(swapKey).Status; status != tx.SwapExecuted {
		t.Errorf("swap status = %s, want executed", status)
	}
}

func TestSwapExecuteInsufficientFunds(t *testing.T) {
	env := newSwapEnv(t, 100)
	swapID, swapKey := env.createSwap(250)

	result, _ := env.apply(env.buyer, NewSwapExecute(env.buyer, swapID))
	if result.Result != tx.TecINSUFFICIENT_FUNDS {
		t.Fatalf("SwapExecute = %s, want tecINSUFFICIENT_FUNDS", result.Result)
	}

	// Nothing moved
	if got := env.balance(env.buyerID); got != 100 {
		t.Errorf("buyer balance = %d, want 100", got)
	}
	if got := env.balance(env.sellerID); got != 1000 {
		t.Errorf("seller balance = %d, want 1000", got)
	}
	if got := env.holdingBalance(env.sellerID); got != 1 {
		t.Errorf("seller holding = %d, want 1", got)
	}
	if status := env.swap(swapKey).Status; status != tx.SwapOpen {
		t.Errorf("swap status = %s, want open", status)
	}
}

func TestSwapExecuteBySeller(t *testing.T) {
	env := newSwapEnv(t, 1000)
	swapID, _ := env.createSwap(250)

	result, _ := env.apply(env.seller, NewSwapExecute(env.seller, swapID))
	if result.Result != tx.TecUNAUTHORIZED {
		t.Errorf("SwapExecute by seller = %s, want tecUNAUTHORIZED", result.Result)
	}
}

func TestSwapExecuteMissing(t *testing.T) {
	env := newSwapEnv(t, 1000)
	missing := hex.EncodeToString(make([]byte, 32))

	result, _ := env.apply(env.buyer, NewSwapExecute(env.buyer, missing))
	if result.Result != tx.TecNO_ENTRY {
		t.Errorf("SwapExecute = %s, want tecNO_ENTRY", result.Result)
	}
}

func TestSwapExecuteTwice(t *testing.T) {
	env := newSwapEnv(t, 1000)
	swapID, _ := env.createSwap(250)

	if result, _ := env.apply(env.buyer, NewSwapExecute(env.buyer, swapID)); result.Result != tx.TesSUCCESS {
		t.Fatalf("first SwapExecute = %s", result.Result)
	}
	if result, _ := env.apply(env.buyer, NewSwapExecute(env.buyer, swapID)); result.Result != tx.TecSWAP_NOT_OPEN {
		t.Errorf("second SwapExecute = %s, want tecSWAP_NOT_OPEN", result.Result)
	}
}

// The full custody sale: the unit is locked in the seller's vault when
// the swap is listed, and execution releases it from custody, settles
// payment, and unlocks the vault in one step.
func TestSwapExecuteReleasesLockedAsset(t *testing.T) {
	env := newSwapEnv(t, 200_000_000)

	if result, _ := env.apply(env.seller, vault.NewVaultCreate(env.seller, env.assetID)); result.Result != tx.TesSUCCESS {
		t.Fatalf("VaultCreate = %s", result.Result)
	}
	if result, _ := env.apply(env.seller, vault.NewVaultLock(env.seller, env.assetID)); result.Result != tx.TesSUCCESS {
		t.Fatalf("VaultLock = %s", result.Result)
	}

	vaultKey := keylet.Vault(env.sellerID, env.asset)
	vaultData, err := env.view.Read(vaultKey)
	if err != nil || vaultData == nil {
		t.Fatalf("vault record not found: %v", err)
	}
	vaultRecord, err := tx.ParseVault(vaultData)
	if err != nil {
		t.Fatalf("ParseVault failed: %v", err)
	}
	authority := keylet.CustodyAuthority(vaultKey.Key, vaultRecord.Bump)
	if env.holdingBalance(authority) != 1 || env.holdingBalance(env.sellerID) != 0 {
		t.Fatal("lock did not move the unit into custody")
	}

	// Listing succeeds while the unit sits in custody
	swapID, swapKey := env.createSwap(100_000_000)

	result, _ := env.apply(env.buyer, NewSwapExecute(env.buyer, swapID))
	if result.Result != tx.TesSUCCESS {
		t.Fatalf("SwapExecute = %s, want tesSUCCESS", result.Result)
	}

	if got := env.holdingBalance(env.buyerID); got != 1 {
		t.Errorf("buyer holding = %d, want 1", got)
	}
	if got := env.holdingBalance(authority); got != 0 {
		t.Errorf("custody holding = %d, want 0", got)
	}
	if got := env.balance(env.buyerID); got != 100_000_000 {
		t.Errorf("buyer balance = %d, want 100000000", got)
	}
	if got := env.balance(env.sellerID); got != 100_001_000 {
		t.Errorf("seller balance = %d, want 100001000", got)
	}
	if status := env.swap(swapKey).Status; status != tx.SwapExecuted {
		t.Errorf("swap status = %s, want executed", status)
	}

	// The emptied vault is unlocked by the sale
	vaultData, err = env.view.Read(vaultKey)
	if err != nil || vaultData == nil {
		t.Fatalf("vault record not found: %v", err)
	}
	vaultRecord, err = tx.ParseVault(vaultData)
	if err != nil {
		t.Fatalf("ParseVault failed: %v", err)
	}
	if vaultRecord.State != tx.VaultUnlocked {
		t.Errorf("vault state = %s, want unlocked", vaultRecord.State)
	}

	if result, _ := env.apply(env.buyer, NewSwapExecute(env.buyer, swapID)); result.Result != tx.TecSWAP_NOT_OPEN {
		t.Errorf("second SwapExecute = %s, want tecSWAP_NOT_OPEN", result.Result)
	}
}

func TestSwapExecuteSellerCannotDeliver(t *testing.T) {
	env := newSwapEnv(t, 1000)
	swapID, swapKey := env.createSwap(250)

	// The unit leaves the seller's holding after listing, no vault holds it
	holdingKey := keylet.Holding(env.asset, env.sellerID)
	data, err := env.view.Read(holdingKey)
	if err != nil || data == nil {
		t.Fatalf("seller holding not found: %v", err)
	}
	holding, err := tx.ParseHolding(data)
	if err != nil {
		t.Fatalf("ParseHolding failed: %v", err)
	}
	holding.Balance = 0
	updated, err := tx.SerializeHolding(holding)
	if err != nil {
		t.Fatalf("SerializeHolding failed: %v", err)
	}
	if err := env.view.Update(holdingKey, updated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	result, _ := env.apply(env.buyer, NewSwapExecute(env.buyer, swapID))
	if result.Result != tx.TecBALANCE_MISMATCH {
		t.Fatalf("SwapExecute = %s, want tecBALANCE_MISMATCH", result.Result)
	}
	if got := env.balance(env.buyerID); got != 1000 {
		t.Errorf("buyer balance = %d, want 1000", got)
	}
	if status := env.swap(swapKey).Status; status != tx.SwapOpen {
		t.Errorf("swap status = %s, want open", status)
	}
}

func TestSwapExecuteOverflowsSellerBalance(t *testing.T) {
	env := newSwapEnv(t, 1000)
	swapID, swapKey := env.createSwap(250)

	// Crediting the price would push the seller past the native range
	sellerKey := keylet.Account(env.sellerID)
	data, err := env.view.Read(sellerKey)
	if err != nil || data == nil {
		t.Fatalf("seller account not found: %v", err)
	}
	seller, err := tx.ParseAccountRoot(data)
	if err != nil {
		t.Fatalf("ParseAccountRoot failed: %v", err)
	}
	seller.Balance = native.MaxAmount
	updated, err := tx.SerializeAccountRoot(seller)
	if err != nil {
		t.Fatalf("SerializeAccountRoot failed: %v", err)
	}
	if err := env.view.Update(sellerKey, updated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	result, _ := env.apply(env.buyer, NewSwapExecute(env.buyer, swapID))
	if result.Result != tx.TecOVERFLOW {
		t.Fatalf("SwapExecute = %s, want tecOVERFLOW", result.Result)
	}

	// Nothing moved
	if got := env.balance(env.buyerID); got != 1000 {
		t.Errorf("buyer balance = %d, want 1000", got)
	}
	if got := env.balance(env.sellerID); got != native.MaxAmount {
		t.Errorf("seller balance = %d, want MaxAmount", got)
	}
	if got := env.holdingBalance(env.sellerID); got != 1 {
		t.Errorf("seller holding = %d, want 1", got)
	}
	if status := env.swap(swapKey).Status; status != tx.SwapOpen {
		t.Errorf("swap status = %s, want open", status)
	}
}

func TestSwapCancel(t *testing.T) {
	env := newSwapEnv(t, 1000)
	swapID, swapKey := env.createSwap(250)

	result, _ := env.apply(env.seller, NewSwapCancel(env.seller, swapID))
	if result.Result != tx.TesSUCCESS {
		t.Fatalf("SwapCancel = %s, want tesSUCCESS", result.Result)
	}
	if status := env.swap(swapKey).Status; status != tx.SwapCancelled {
		t.Errorf("swap status = %s, want cancelled", status)
	}

	// A cancelled swap cannot be executed
	if result, _ := env.apply(env.buyer, NewSwapExecute(env.buyer, swapID)); result.Result != tx.TecSWAP_NOT_OPEN {
		t.Errorf("SwapExecute after cancel = %s, want tecSWAP_NOT_OPEN", result.Result)
	}
}

func TestSwapCancelByNonSeller(t *testing.T) {
	env := newSwapEnv(t, 1000)
	swapID, _ := env.createSwap(250)

	result, _ := env.apply(env.buyer, NewSwapCancel(env.buyer, swapID))
	if result.Result != tx.TecUNAUTHORIZED {
		t.Errorf("SwapCancel by buyer = %s, want tecUNAUTHORIZED", result.Result)
	}
}

func TestSwapCreateValidation(t *testing.T) {
	validAsset := hex.EncodeToString(make([]byte, 32))
	tests := []struct {
		name     string
		txn      interface{ Validate() error }
		errorMsg string
	}{
		{"valid", NewSwapCreate("rSeller", validAsset, 100), ""},
		{"missing asset id", NewSwapCreate("rSeller", "", 100), "temMALFORMED: AssetID is required"},
		{"bad asset id", NewSwapCreate("rSeller", "zz", 100), "temMALFORMED: AssetID must be 32 bytes of hex"},
		{"zero price", NewSwapCreate("rSeller", validAsset, 0), "temBAD_PRICE: Price must be positive"},
		{"execute missing swap id", NewSwapExecute("rBuyer", ""), ErrSwapIDRequired.Error()},
		{"cancel bad swap id", NewSwapCancel("rSeller", "abcd"), ErrBadSwapID.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.txn.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("Validate failed: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.errorMsg {
				t.Errorf("expected error %q, got %v", tt.errorMsg, err)
			}
		})
	}
}
