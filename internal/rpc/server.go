package rpc

import (
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// Server handles HTTP JSON-RPC requests.
type Server struct {
	services *Services
	registry *MethodRegistry
	timeout  time.Duration
}

// NewServer creates an RPC server with all methods registered.
func NewServer(services *Services, timeout time.Duration) *Server {
	s := &Server{
		services: services,
		registry: NewMethodRegistry(),
		timeout:  timeout,
	}
	s.registerMethods()
	return s
}

// Registry exposes the method registry so the WebSocket server can
// dispatch the same methods.
func (s *Server) Registry() *MethodRegistry {
	return s.registry
}

func (s *Server) registerMethods() {
	s.registry.Register("ping", &pingMethod{})
	s.registry.Register("server_info", &serverInfoMethod{svc: s.services})
	s.registry.Register("ledger", &ledgerMethod{svc: s.services})
	s.registry.Register("ledger_accept", &ledgerAcceptMethod{svc: s.services})
	s.registry.Register("ledger_entry", &ledgerEntryMethod{svc: s.services})
	s.registry.Register("ledger_snapshot", &ledgerSnapshotMethod{svc: s.services})
	s.registry.Register("submit", &submitMethod{svc: s.services})
	s.registry.Register("tx", &txMethod{svc: s.services})
	s.registry.Register("account_info", &accountInfoMethod{svc: s.services})
	s.registry.Register("account_holdings", &accountHoldingsMethod{svc: s.services})
	s.registry.Register("account_tx", &accountTxMethod{svc: s.services})
	s.registry.Register("asset_info", &assetInfoMethod{svc: s.services})
	s.registry.Register("vault_info", &vaultInfoMethod{svc: s.services})
	s.registry.Register("swap_info", &swapInfoMethod{svc: s.services})
	s.registry.Register("swaps", &swapsMethod{svc: s.services})
	s.registry.Register("subscribe", &subscribeMethod{})
	s.registry.Register("unsubscribe", &unsubscribeMethod{})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("command")
	if method == "" {
		method = "server_info"
	}

	ctx := s.newContext(r)
	result, rpcErr := s.executeMethod(method, nil, ctx)
	s.writeResponse(w, result, rpcErr)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, nil, NewRpcError("internal", "Failed to read request body."))
		return
	}
	defer r.Body.Close()

	var request Request
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeResponse(w, nil, NewRpcError("jsonInvalid", "Invalid JSON: "+err.Error()))
		return
	}
	if request.Method == "" {
		s.writeResponse(w, nil, NewRpcError("missingCommand", "Null method."))
		return
	}

	var params json.RawMessage
	if len(request.Params) > 0 {
		params = request.Params[0]
	}

	ctx := s.newContext(r)
	result, rpcErr := s.executeMethod(request.Method, params, ctx)
	s.writeResponse(w, result, rpcErr)
}

func (s *Server) newContext(r *http.Request) *RpcContext {
	// Loopback connections get the admin role, same as the CLI.
	clientIP := getClientIP(r)
	role := RoleGuest
	isAdmin := false
	if ip := net.ParseIP(clientIP); ip != nil && ip.IsLoopback() {
		role = RoleAdmin
		isAdmin = true
	}
	return &RpcContext{
		Context:  r.Context(),
		Role:     role,
		IsAdmin:  isAdmin,
		ClientIP: clientIP,
	}
}

// ExecuteMethod dispatches a method by name. Shared with the WebSocket
// server.
func (s *Server) ExecuteMethod(method string, params json.RawMessage, ctx *RpcContext) (any, *RpcError) {
	return s.executeMethod(method, params, ctx)
}

func (s *Server) executeMethod(method string, params json.RawMessage, ctx *RpcContext) (any, *RpcError) {
	handler, ok := s.registry.Get(method)
	if !ok {
		return nil, ErrUnknownMethod
	}
	if handler.RequiredRole() > ctx.Role {
		return nil, ErrForbidden
	}

	start := time.Now()
	result, rpcErr := handler.Handle(ctx, params)
	if elapsed := time.Since(start); elapsed > time.Second {
		log.Printf("rpc: slow method %s took %s", method, elapsed)
	}
	return result, rpcErr
}

// writeResponse wraps the result in the response envelope. Errors are
// reported inside the result object with status "error".
func (s *Server) writeResponse(w http.ResponseWriter, result any, rpcErr *RpcError) {
	envelope := map[string]any{}

	if rpcErr != nil {
		envelope["result"] = map[string]any{
			"status":        "error",
			"error":         rpcErr.Code,
			"error_message": rpcErr.Message,
		}
	} else {
		resultMap := toResultMap(result)
		resultMap["status"] = "success"
		envelope["result"] = resultMap
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		log.Printf("rpc: write response: %v", err)
	}
}

// toResultMap re-encodes a handler result as a map so the status field
// can be injected next to the payload.
func toResultMap(result any) map[string]any {
	if result == nil {
		return map[string]any{}
	}
	if m, ok := result.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(result)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
