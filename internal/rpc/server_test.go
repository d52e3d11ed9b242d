package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	addresscodec "github.com/tokenvault/tokenvaultd/internal/codec/address-codec"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/genesis"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/service"
	"github.com/tokenvault/tokenvaultd/internal/core/native"
	_ "github.com/tokenvault/tokenvaultd/internal/core/tx/all"
	"github.com/tokenvault/tokenvaultd/internal/crypto"
)

func newTestServer(t *testing.T) (*Server, *service.Service) {
	t.Helper()
	svc := service.New(service.Config{
		Standalone: true,
		Genesis:    genesis.DefaultConfig(),
	})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("service start failed: %v", err)
	}
	return NewServer(&Services{Ledger: svc}, 30*time.Second), svc
}

func newTestAddress(t *testing.T) string {
	t.Helper()
	kp, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	return addresscodec.Encode(crypto.AccountID(kp.PublicKey))
}

// call posts a request from loopback and returns the result object.
func call(t *testing.T, server *Server, method string, params any) map[string]any {
	t.Helper()

	request := map[string]any{"method": method}
	if params != nil {
		request["params"] = []any{params}
	}
	body, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:50000"
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("%s returned HTTP %d", method, rec.Code)
	}

	var envelope struct {
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Result == nil {
		t.Fatalf("%s returned no result object", method)
	}
	return envelope.Result
}

func mustSucceed(t *testing.T, result map[string]any, method string) {
	t.Helper()
	if result["status"] != "success" {
		t.Fatalf("%s failed: %v %v", method, result["error"], result["error_message"])
	}
}

func TestPing(t *testing.T) {
	server, _ := newTestServer(t)
	result := call(t, server, "ping", nil)
	mustSucceed(t, result, "ping")
}

func TestUnknownMethod(t *testing.T) {
	server, _ := newTestServer(t)
	result := call(t, server, "no_such_method", nil)
	if result["error"] != "unknownCmd" {
		t.Errorf("error = %v, want unknownCmd", result["error"])
	}
}

func TestServerInfo(t *testing.T) {
	server, _ := newTestServer(t)
	result := call(t, server, "server_info", nil)
	mustSucceed(t, result, "server_info")

	info, ok := result["info"].(map[string]any)
	if !ok {
		t.Fatal("server_info missing info object")
	}
	if info["standalone"] != true {
		t.Error("standalone should be true")
	}
	if info["current_ledger_index"].(float64) != 2 {
		t.Errorf("current_ledger_index = %v, want 2", info["current_ledger_index"])
	}
	if info["master_account"] == "" {
		t.Error("master_account should be set")
	}
}

func TestGetDefaultsToServerInfo(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	var envelope struct {
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if _, ok := envelope.Result["info"]; !ok {
		t.Error("GET without command should return server_info")
	}
}

func TestSubmitAndAcceptFlow(t *testing.T) {
	server, svc := newTestServer(t)
	master, err := svc.GetMasterAccount()
	if err != nil {
		t.Fatalf("GetMasterAccount failed: %v", err)
	}
	dest := newTestAddress(t)

	txJSON := map[string]any{
		"TransactionType": "Payment",
		"Account":         master,
		"Destination":     dest,
		"Amount":          uint64(25 * native.GrainsPerToken),
		"Sequence":        1,
	}
	result := call(t, server, "submit", map[string]any{"tx_json": txJSON})
	mustSucceed(t, result, "submit")
	if result["engine_result"] != "tesSUCCESS" {
		t.Fatalf("engine_result = %v, want tesSUCCESS", result["engine_result"])
	}
	txHash, _ := result["tx_hash"].(string)
	if len(txHash) != 64 {
		t.Fatalf("tx_hash = %q, want 64 hex chars", txHash)
	}

	result = call(t, server, "ledger_accept", nil)
	mustSucceed(t, result, "ledger_accept")
	if result["accepted_ledger"].(float64) != 2 {
		t.Errorf("accepted_ledger = %v, want 2", result["accepted_ledger"])
	}

	result = call(t, server, "account_info", map[string]any{
		"account":      dest,
		"ledger_index": "validated",
	})
	mustSucceed(t, result, "account_info")
	data := result["account_data"].(map[string]any)
	if data["Balance"].(float64) != float64(25*native.GrainsPerToken) {
		t.Errorf("balance = %v, want %d", data["Balance"], 25*native.GrainsPerToken)
	}

	result = call(t, server, "tx", map[string]any{"transaction": txHash})
	mustSucceed(t, result, "tx")
	if result["validated"] != true {
		t.Error("transaction should be validated after accept")
	}
}

func TestLedgerAcceptRequiresAdmin(t *testing.T) {
	server, _ := newTestServer(t)

	body := []byte(`{"method":"ledger_accept"}`)
	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	req.RemoteAddr = "203.0.113.9:40000"
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	var envelope struct {
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Result["error"] != "forbidden" {
		t.Errorf("error = %v, want forbidden", envelope.Result["error"])
	}
}

func TestAccountInfoNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	result := call(t, server, "account_info", map[string]any{
		"account": newTestAddress(t),
	})
	if result["error"] != "actNotFound" {
		t.Errorf("error = %v, want actNotFound", result["error"])
	}
}

func TestLedgerMethod(t *testing.T) {
	server, _ := newTestServer(t)

	result := call(t, server, "ledger", map[string]any{"ledger_index": "validated"})
	mustSucceed(t, result, "ledger")
	ledgerData := result["ledger"].(map[string]any)
	if ledgerData["ledger_index"].(float64) != 1 {
		t.Errorf("validated ledger index = %v, want 1", ledgerData["ledger_index"])
	}
	if result["validated"] != true {
		t.Error("genesis should be validated")
	}

	result = call(t, server, "ledger", map[string]any{"ledger_index": "99"})
	if result["error"] != "lgrNotFound" {
		t.Errorf("error = %v, want lgrNotFound", result["error"])
	}
}

func TestSwapsEmpty(t *testing.T) {
	server, _ := newTestServer(t)
	result := call(t, server, "swaps", nil)
	mustSucceed(t, result, "swaps")
	swaps, ok := result["swaps"].([]any)
	if !ok {
		t.Fatal("swaps missing from response")
	}
	if len(swaps) != 0 {
		t.Errorf("open swaps = %d, want 0", len(swaps))
	}
}

func TestSubscriptionManagerBroadcast(t *testing.T) {
	manager := NewSubscriptionManager()

	ledgerSub := newConnection("a")
	ledgerSub.subscribe(SubLedger, nil)
	accountSub := newConnection("b")
	accountSub.subscribe(SubAccounts, []string{"rAccount1"})
	manager.AddConnection(ledgerSub)
	manager.AddConnection(accountSub)

	if got := manager.SubscriberCount(SubLedger); got != 1 {
		t.Errorf("ledger subscribers = %d, want 1", got)
	}

	manager.Broadcast(SubLedger, map[string]any{"type": "ledgerClosed"}, nil)
	select {
	case <-ledgerSub.SendChannel:
	default:
		t.Error("ledger subscriber did not receive broadcast")
	}
	select {
	case <-accountSub.SendChannel:
		t.Error("account subscriber should not receive ledger broadcast")
	default:
	}

	manager.Broadcast(SubAccounts, map[string]any{"type": "transaction"}, []string{"rAccount1"})
	select {
	case <-accountSub.SendChannel:
	default:
		t.Error("account subscriber did not receive matching transaction")
	}

	manager.Broadcast(SubAccounts, map[string]any{"type": "transaction"}, []string{"rOther"})
	select {
	case <-accountSub.SendChannel:
		t.Error("account subscriber received non-matching transaction")
	default:
	}

	manager.RemoveConnection("a")
	if got := manager.ConnectionCount(); got != 1 {
		t.Errorf("connections = %d, want 1", got)
	}
}

func TestPublisherEvents(t *testing.T) {
	manager := NewSubscriptionManager()
	publisher := NewPublisher(manager)

	conn := newConnection("sub")
	conn.subscribe(SubTransactions, nil)
	manager.AddConnection(conn)

	publisher.OnTransaction(service.TransactionEvent{
		Hash:      [32]byte{1},
		LedgerSeq: 7,
		Result:    "tesSUCCESS",
		Account:   "rSomeone",
		TxJSON:    []byte(`{"TransactionType":"Payment"}`),
		Validated: true,
	})

	select {
	case data := <-conn.SendChannel:
		var message map[string]any
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if message["type"] != "transaction" {
			t.Errorf("type = %v, want transaction", message["type"])
		}
		if message["ledger_index"].(float64) != 7 {
			t.Errorf("ledger_index = %v, want 7", message["ledger_index"])
		}
	default:
		t.Fatal("no transaction event delivered")
	}
}

func TestLedgerSnapshotMethod(t *testing.T) {
	server, _ := newTestServer(t)
	path := filepath.Join(t.TempDir(), "state.snap")

	result := call(t, server, "ledger_snapshot", map[string]any{
		"path":         path,
		"ledger_index": "validated",
	})
	mustSucceed(t, result, "ledger_snapshot")
	if result["entry_count"].(float64) < 1 {
		t.Errorf("entry_count = %v, want at least 1", result["entry_count"])
	}

	snap, err := service.ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile failed: %v", err)
	}
	if snap.LedgerSeq != 1 {
		t.Errorf("snapshot ledger = %d, want 1", snap.LedgerSeq)
	}

	// Missing path is rejected
	result = call(t, server, "ledger_snapshot", map[string]any{})
	if result["status"] != "error" {
		t.Error("expected an error without a path")
	}
}
