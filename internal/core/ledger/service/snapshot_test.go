package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	svc := newTestService(t)
	dest := newTestAccount(t)
	master, err := svc.GetMasterAccount()
	if err != nil {
		t.Fatalf("GetMasterAccount failed: %v", err)
	}
	submitPayment(t, svc, master, dest, 500, 1)
	if _, err := svc.AcceptLedger(context.Background()); err != nil {
		t.Fatalf("AcceptLedger failed: %v", err)
	}

	var buf bytes.Buffer
	exported, err := svc.ExportSnapshot(&buf, "validated")
	if err != nil {
		t.Fatalf("ExportSnapshot failed: %v", err)
	}
	if exported.LedgerSeq != 2 {
		t.Errorf("snapshot ledger = %d, want 2", exported.LedgerSeq)
	}
	// Master, destination, genesis ledger state
	if len(exported.Entries) < 2 {
		t.Fatalf("entry count = %d, want at least 2", len(exported.Entries))
	}

	decoded, err := ReadSnapshot(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if decoded.LedgerSeq != exported.LedgerSeq {
		t.Errorf("ledger seq = %d, want %d", decoded.LedgerSeq, exported.LedgerSeq)
	}
	if decoded.LedgerHash != exported.LedgerHash {
		t.Error("ledger hash mismatch")
	}
	if decoded.StateHash != exported.StateHash {
		t.Error("state hash mismatch")
	}
	if len(decoded.Entries) != len(exported.Entries) {
		t.Fatalf("entry count = %d, want %d", len(decoded.Entries), len(exported.Entries))
	}
	for i := range decoded.Entries {
		if decoded.Entries[i].Key != exported.Entries[i].Key {
			t.Fatalf("entry %d key mismatch", i)
		}
		if !bytes.Equal(decoded.Entries[i].Data, exported.Entries[i].Data) {
			t.Fatalf("entry %d data mismatch", i)
		}
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	svc := newTestService(t)

	var first, second bytes.Buffer
	if _, err := svc.ExportSnapshot(&first, "validated"); err != nil {
		t.Fatalf("ExportSnapshot failed: %v", err)
	}
	if _, err := svc.ExportSnapshot(&second, "validated"); err != nil {
		t.Fatalf("ExportSnapshot failed: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("two exports of the same ledger must be byte-identical")
	}
}

func TestSnapshotFile(t *testing.T) {
	svc := newTestService(t)
	path := filepath.Join(t.TempDir(), "state.snap")

	written, err := svc.WriteSnapshotFile(path, "validated")
	if err != nil {
		t.Fatalf("WriteSnapshotFile failed: %v", err)
	}
	read, err := ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile failed: %v", err)
	}
	if read.LedgerHash != written.LedgerHash {
		t.Error("ledger hash mismatch")
	}
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	if _, err := ReadSnapshot(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Error("expected an error for a non-snapshot stream")
	}
}

func TestExportSnapshotUnknownLedger(t *testing.T) {
	svc := newTestService(t)

	var buf bytes.Buffer
	if _, err := svc.ExportSnapshot(&buf, "99"); err == nil {
		t.Error("expected an error for an unknown ledger")
	}
}
