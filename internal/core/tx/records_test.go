package tx

import (
	"errors"
	"testing"
)

func sampleRecords(t *testing.T) map[string][]byte {
	t.Helper()
	var account [20]byte
	var asset [32]byte
	account[0] = 0xAA
	asset[0] = 0xBB

	records := make(map[string][]byte)
	encode := func(name string) func(data []byte, err error) {
		return func(data []byte, err error) {
			if err != nil {
				t.Fatalf("serializing %s: %v", name, err)
			}
			records[name] = data
		}
	}
	encode("AccountRoot")(SerializeAccountRoot(&AccountRoot{
		AccountID: account,
		Balance:   1000,
		Sequence:  1,
	}))
	encode("Asset")(SerializeAsset(&AssetRecord{
		AssetID: asset,
		Issuer:  account,
		Supply:  1,
		Name:    "Deed",
		Symbol:  "DEED",
	}))
	encode("Holding")(SerializeHolding(&HoldingRecord{
		Asset:     asset,
		Authority: account,
		Balance:   1,
	}))
	encode("Vault")(SerializeVault(&VaultRecord{
		Owner: account,
		Asset: asset,
		Bump:  3,
		State: VaultLocked,
	}))
	encode("Swap")(SerializeSwap(&SwapRecord{
		Seller: account,
		Asset:  asset,
		Price:  250,
		Status: SwapOpen,
	}))
	return records
}

// Each parser accepts only bytes carrying its own discriminator. Feeding
// it another record type's bytes fails with ErrBadRecord instead of
// reinterpreting them.
func TestParsersRejectForeignRecords(t *testing.T) {
	records := sampleRecords(t)
	parsers := map[string]func([]byte) error{
		"AccountRoot": func(d []byte) error { _, err := ParseAccountRoot(d); return err },
		"Asset":       func(d []byte) error { _, err := ParseAsset(d); return err },
		"Holding":     func(d []byte) error { _, err := ParseHolding(d); return err },
		"Vault":       func(d []byte) error { _, err := ParseVault(d); return err },
		"Swap":        func(d []byte) error { _, err := ParseSwap(d); return err },
	}

	for parserName, parse := range parsers {
		for recordName, data := range records {
			err := parse(data)
			if parserName == recordName {
				if err != nil {
					t.Errorf("Parse%s(%s bytes) failed: %v", parserName, recordName, err)
				}
				continue
			}
			if !errors.Is(err, ErrBadRecord) {
				t.Errorf("Parse%s(%s bytes) = %v, want ErrBadRecord", parserName, recordName, err)
			}
		}
	}
}

func TestParsersRejectTruncatedRecords(t *testing.T) {
	records := sampleRecords(t)
	parsers := map[string]func([]byte) error{
		"AccountRoot": func(d []byte) error { _, err := ParseAccountRoot(d); return err },
		"Asset":       func(d []byte) error { _, err := ParseAsset(d); return err },
		"Holding":     func(d []byte) error { _, err := ParseHolding(d); return err },
		"Vault":       func(d []byte) error { _, err := ParseVault(d); return err },
		"Swap":        func(d []byte) error { _, err := ParseSwap(d); return err },
	}

	for name, parse := range parsers {
		data := records[name]
		if err := parse(data[:len(data)-1]); !errors.Is(err, ErrBadRecord) {
			t.Errorf("Parse%s(truncated) = %v, want ErrBadRecord", name, err)
		}
		if err := parse(nil); !errors.Is(err, ErrBadRecord) {
			t.Errorf("Parse%s(nil) = %v, want ErrBadRecord", name, err)
		}
	}
}

func TestParseVaultRejectsUnknownState(t *testing.T) {
	data, err := SerializeVault(&VaultRecord{State: VaultLocked})
	if err != nil {
		t.Fatalf("SerializeVault failed: %v", err)
	}
	data[len(data)-1] = 9
	if _, err := ParseVault(data); !errors.Is(err, ErrBadRecord) {
		t.Errorf("ParseVault(state 9) = %v, want ErrBadRecord", err)
	}
}

func TestParseSwapRejectsUnknownStatus(t *testing.T) {
	data, err := SerializeSwap(&SwapRecord{Status: SwapOpen})
	if err != nil {
		t.Fatalf("SerializeSwap failed: %v", err)
	}
	data[len(data)-1] = 9
	if _, err := ParseSwap(data); !errors.Is(err, ErrBadRecord) {
		t.Errorf("ParseSwap(status 9) = %v, want ErrBadRecord", err)
	}
}
