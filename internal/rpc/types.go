// Package rpc exposes the ledger service over HTTP JSON-RPC and
// WebSocket. Requests use the envelope {"method": ..., "params": [{...}]};
// responses wrap the result with a status field.
package rpc

import (
	"context"
	"encoding/json"
)

// Role gates access to administrative methods.
type Role int

const (
	RoleGuest Role = iota
	RoleUser
	RoleAdmin
)

// RpcContext carries request-scoped information to method handlers.
type RpcContext struct {
	Context  context.Context
	Role     Role
	IsAdmin  bool
	ClientIP string

	// Connection is set for WebSocket requests so subscription methods
	// can bind streams to the calling connection.
	Connection *Connection
}

// MethodHandler is implemented by every RPC method.
type MethodHandler interface {
	Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError)
	RequiredRole() Role
}

// MethodRegistry maps method names to handlers.
type MethodRegistry struct {
	methods map[string]MethodHandler
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{methods: make(map[string]MethodHandler)}
}

func (r *MethodRegistry) Register(name string, handler MethodHandler) {
	r.methods[name] = handler
}

func (r *MethodRegistry) Get(name string) (MethodHandler, bool) {
	handler, ok := r.methods[name]
	return handler, ok
}

func (r *MethodRegistry) List() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	return names
}

// Request is the JSON-RPC request envelope.
type Request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

// RpcError is an error payload returned inside the result object.
type RpcError struct {
	Code    string `json:"error"`
	Message string `json:"error_message,omitempty"`
}

func NewRpcError(code, message string) *RpcError {
	return &RpcError{Code: code, Message: message}
}

// Standard error codes.
var (
	ErrUnknownMethod = NewRpcError("unknownCmd", "Unknown method.")
	ErrInvalidParams = NewRpcError("invalidParams", "Invalid parameters.")
	ErrForbidden     = NewRpcError("forbidden", "You don't have permission for this command.")
	ErrInternal      = NewRpcError("internal", "Internal error.")
	ErrNotReady      = NewRpcError("notReady", "Not ready to handle this request.")
	ErrAcctNotFound  = NewRpcError("actNotFound", "Account not found.")
	ErrEntryNotFound = NewRpcError("entryNotFound", "Ledger entry not found.")
	ErrTxnNotFound   = NewRpcError("txnNotFound", "Transaction not found.")
	ErrLgrNotFound   = NewRpcError("lgrNotFound", "Ledger not found.")
	ErrNotStandalone = NewRpcError("notStandalone", "Operation requires standalone mode.")
	ErrNotSupported  = NewRpcError("notSupported", "Operation not supported.")
)

// SubscriptionType names an event stream.
type SubscriptionType string

const (
	SubLedger       SubscriptionType = "ledger"
	SubTransactions SubscriptionType = "transactions"
	SubAccounts     SubscriptionType = "accounts"
)

// WebSocketCommand is the command envelope on WebSocket connections.
// Method parameters are carried inline alongside the command field.
type WebSocketCommand struct {
	Command string `json:"command"`
	ID      any    `json:"id,omitempty"`
}

// WebSocketResponse is the reply envelope on WebSocket connections.
type WebSocketResponse struct {
	Type   string `json:"type"`
	ID     any    `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
