package header

import (
	"testing"
	"time"
)

func TestSerializeRoundTrip(t *testing.T) {
	h := &LedgerHeader{
		LedgerIndex:         42,
		TotalGrains:         10_000_000_000,
		ParentHash:          [32]byte{1, 2, 3},
		TxHash:              [32]byte{4, 5, 6},
		AccountHash:         [32]byte{7, 8, 9},
		ParentCloseTime:     time.Unix(1_700_000_000, 0).UTC(),
		CloseTime:           time.Unix(1_700_000_010, 0).UTC(),
		CloseTimeResolution: 1,
		CloseFlags:          LCFNoConsensusTime,
	}
	h.Hash = h.CalculateHash()

	decoded, err := Deserialize(h.Serialize())
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if *decoded != *h {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, h)
	}
}

func TestDeserializeShort(t *testing.T) {
	if _, err := Deserialize([]byte{1, 2, 3}); err != ErrShortHeader {
		t.Errorf("got %v, expected ErrShortHeader", err)
	}
}

func TestCalculateHashSensitivity(t *testing.T) {
	h := LedgerHeader{LedgerIndex: 1, TotalGrains: 100}
	base := h.CalculateHash()

	h.LedgerIndex = 2
	if h.CalculateHash() == base {
		t.Error("hash should change with ledger index")
	}
	h.LedgerIndex = 1
	h.ParentHash[0] = 0xFF
	if h.CalculateHash() == base {
		t.Error("hash should change with parent hash")
	}
}

func TestGetCloseAgree(t *testing.T) {
	h := LedgerHeader{}
	if !h.GetCloseAgree() {
		t.Error("zero close flags should mean consensus close time")
	}
	h.CloseFlags = LCFNoConsensusTime
	if h.GetCloseAgree() {
		t.Error("LCFNoConsensusTime should mean no consensus")
	}
}
