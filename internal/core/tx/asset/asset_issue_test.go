package asset

import (
	"strings"
	"testing"

	addresscodec "github.com/tokenvault/tokenvaultd/internal/codec/address-codec"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/native"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
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

func newTestAccount(t *testing.T, view *testView, balance native.Amount, sequence uint32) (string, [20]byte) {
	t.Helper()
	kp, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	id := crypto.AccountID(kp.PublicKey)
	data, err := tx.SerializeAccountRoot(&tx.AccountRoot{
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
	return addresscodec.Encode(id), id
}

func newTestEngine(view tx.LedgerView) *tx.Engine {
	return tx.NewEngine(view, tx.EngineConfig{
		LedgerSequence:            2,
		SkipSignatureVerification: true,
		Standalone:                true,
	})
}

func TestAssetIssueValidation(t *testing.T) {
	tests := []struct {
		name     string
		issue    *AssetIssue
		errorMsg string
	}{
		{
			name:  "valid",
			issue: NewAssetIssue("rIssuer", "Deed 42", "DEED", "https://example.com/deed/42"),
		},
		{
			name:  "valid without uri",
			issue: NewAssetIssue("rIssuer", "Deed 42", "DEED", ""),
		},
		{
			name:     "missing name",
			issue:    NewAssetIssue("rIssuer", "", "DEED", ""),
			errorMsg: "temMALFORMED: Name is required",
		},
		{
			name:     "name too long",
			issue:    NewAssetIssue("rIssuer", strings.Repeat("x", MaxNameLength+1), "DEED", ""),
			errorMsg: "temMALFORMED: Name is too long",
		},
		{
			name:     "missing symbol",
			issue:    NewAssetIssue("rIssuer", "Deed 42", "", ""),
			errorMsg: "temMALFORMED: Symbol is required",
		},
		{
			name:     "symbol too long",
			issue:    NewAssetIssue("rIssuer", "Deed 42", strings.Repeat("D", MaxSymbolLength+1), ""),
			errorMsg: "temMALFORMED: Symbol is too long",
		},
		{
			name:     "uri too long",
			issue:    NewAssetIssue("rIssuer", "Deed 42", "DEED", strings.Repeat("u", MaxURILength+1)),
			errorMsg: "temMALFORMED: URI is too long",
		},
		{
			name:     "uri not a url",
			issue:    NewAssetIssue("rIssuer", "Deed 42", "DEED", "not a url"),
			errorMsg: "temMALFORMED: URI must be an absolute URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.issue.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("Validate failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errorMsg)
			}
			if err.Error() != tt.errorMsg {
				t.Errorf("expected error %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestAssetIssueApply(t *testing.T) {
	view := newTestView()
	issuerAddr, issuerID := newTestAccount(t, view, 1000, 1)

	issue := NewAssetIssue(issuerAddr, "Deed 42", "DEED", "https://example.com/deed/42")
	issue.SetSequence(1)

	result := newTestEngine(view).Apply(issue)
	if result.Result != tx.TesSUCCESS {
		t.Fatalf("Apply = %s, want tesSUCCESS", result.Result)
	}

	// The asset lives at the key derived from issuer and sequence
	assetKey := keylet.Asset(issuerID, 1)
	assetData, err := view.Read(assetKey)
	if err != nil || assetData == nil {
		t.Fatalf("asset record not found: %v", err)
	}
	record, err := tx.ParseAsset(assetData)
	if err != nil {
		t.Fatalf("ParseAsset failed: %v", err)
	}
	if record.Supply != 1 {
		t.Errorf("supply = %d, want 1", record.Supply)
	}
	if record.Issuer != issuerID {
		t.Error("issuer mismatch")
	}
	if record.Name != "Deed 42" || record.Symbol != "DEED" {
		t.Errorf("name/symbol = %q/%q", record.Name, record.Symbol)
	}

	// The single unit is credited to the issuer
	holdingData, err := view.Read(keylet.Holding(assetKey.Key, issuerID))
	if err != nil || holdingData == nil {
		t.Fatalf("issuer holding not found: %v", err)
	}
	holding, err := tx.ParseHolding(holdingData)
	if err != nil {
		t.Fatalf("ParseHolding failed: %v", err)
	}
	if holding.Balance != 1 {
		t.Errorf("holding balance = %d, want 1", holding.Balance)
	}
	if holding.Custodial {
		t.Error("issuer holding must not be custodial")
	}

	issuerData, _ := view.Read(keylet.Account(issuerID))
	issuer, err := tx.ParseAccountRoot(issuerData)
	if err != nil {
		t.Fatalf("ParseAccountRoot failed: %v", err)
	}
	if issuer.OwnerCount != 2 {
		t.Errorf("owner count = %d, want 2", issuer.OwnerCount)
	}
	if issuer.Sequence != 2 {
		t.Errorf("sequence = %d, want 2", issuer.Sequence)
	}
}

func TestAssetIssueDistinctKeys(t *testing.T) {
	view := newTestView()
	issuerAddr, issuerID := newTestAccount(t, view, 1000, 1)
	engine := newTestEngine(view)

	first := NewAssetIssue(issuerAddr, "Deed 1", "DEED", "")
	first.SetSequence(1)
	if result := engine.Apply(first); result.Result != tx.TesSUCCESS {
		t.Fatalf("first issue = %s", result.Result)
	}

	second := NewAssetIssue(issuerAddr, "Deed 2", "DEED", "")
	second.SetSequence(2)
	if result := engine.Apply(second); result.Result != tx.TesSUCCESS {
		t.Fatalf("second issue = %s", result.Result)
	}

	if keylet.Asset(issuerID, 1).Key == keylet.Asset(issuerID, 2).Key {
		t.Error("asset keys for different sequences must differ")
	}

	issuerData, _ := view.Read(keylet.Account(issuerID))
	issuer, err := tx.ParseAccountRoot(issuerData)
	if err != nil {
		t.Fatalf("ParseAccountRoot failed: %v", err)
	}
	if issuer.OwnerCount != 4 {
		t.Errorf("owner count = %d, want 4", issuer.OwnerCount)
	}
}

func TestAssetIssueDuplicate(t *testing.T) {
	view := newTestView()
	issuerAddr, issuerID := newTestAccount(t, view, 1000, 1)

	// Occupy the key the issue would use
	assetKey := keylet.Asset(issuerID, 1)
	occupied, err := tx.SerializeAsset(&tx.AssetRecord{
		AssetID: assetKey.Key,
		Issuer:  issuerID,
		Supply:  1,
		Name:    "Already here",
		Symbol:  "OLD",
	})
	if err != nil {
		t.Fatalf("SerializeAsset failed: %v", err)
	}
	if err := view.Insert(assetKey, occupied); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	issue := NewAssetIssue(issuerAddr, "Deed 42", "DEED", "")
	issue.SetSequence(1)

	result := newTestEngine(view).Apply(issue)
	if result.Result != tx.TecDUPLICATE {
		t.Fatalf("Apply = %s, want tecDUPLICATE", result.Result)
	}

	// The failed issue still consumed the sequence, nothing else changed
	issuerData, _ := view.Read(keylet.Account(issuerID))
	issuer, err := tx.ParseAccountRoot(issuerData)
	if err != nil {
		t.Fatalf("ParseAccountRoot failed: %v", err)
	}
	if issuer.Sequence != 2 {
		t.Errorf("sequence = %d, want 2", issuer.Sequence)
	}
	if issuer.OwnerCount != 0 {
		t.Errorf("owner count = %d, want 0", issuer.OwnerCount)
	}
	if exists, _ := view.Exists(keylet.Holding(assetKey.Key, issuerID)); exists {
		t.Error("holding must not be created on failure")
	}
}
