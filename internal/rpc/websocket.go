package rpc

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadLimit    = 512 * 1024
	wsPongWait     = 60 * time.Second
	wsPingInterval = 54 * time.Second
	wsWriteWait    = 10 * time.Second
)

// WebSocketServer serves RPC methods and event streams over WebSocket.
type WebSocketServer struct {
	upgrader websocket.Upgrader
	manager  *SubscriptionManager
	rpc      *Server
}

// NewWebSocketServer wraps an RPC server so the same methods are
// reachable over WebSocket, plus subscribe/unsubscribe.
func NewWebSocketServer(rpcServer *Server, manager *SubscriptionManager) *WebSocketServer {
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		manager: manager,
		rpc:     rpcServer,
	}
}

// ServeHTTP upgrades the request and runs the connection loops.
func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("rpc: websocket upgrade: %v", err)
		return
	}

	conn := newConnection(generateConnectionID())
	ws.manager.AddConnection(conn)

	go ws.writeLoop(conn, sock)
	go ws.readLoop(conn, sock, r)
}

func (ws *WebSocketServer) readLoop(conn *Connection, sock *websocket.Conn, r *http.Request) {
	defer func() {
		ws.manager.RemoveConnection(conn.ID)
		close(conn.CloseChannel)
		sock.Close()
	}()

	sock.SetReadLimit(wsReadLimit)
	sock.SetReadDeadline(time.Now().Add(wsPongWait))
	sock.SetPongHandler(func(string) error {
		sock.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("rpc: websocket read: %v", err)
			}
			return
		}

		var command WebSocketCommand
		if err := json.Unmarshal(message, &command); err != nil || command.Command == "" {
			ws.reply(conn, WebSocketResponse{
				Type:   "response",
				ID:     command.ID,
				Status: "error",
				Error:  "missingCommand",
			})
			continue
		}

		ctx := &RpcContext{
			Context:    r.Context(),
			Role:       wsRole(r),
			ClientIP:   getClientIP(r),
			Connection: conn,
		}
		ctx.IsAdmin = ctx.Role >= RoleAdmin

		// The whole message doubles as the parameter object.
		result, rpcErr := ws.rpc.ExecuteMethod(command.Command, message, ctx)

		response := WebSocketResponse{Type: "response", ID: command.ID}
		if rpcErr != nil {
			response.Status = "error"
			response.Error = rpcErr.Code
		} else {
			response.Status = "success"
			response.Result = result
		}
		ws.reply(conn, response)
	}
}

func (ws *WebSocketServer) writeLoop(conn *Connection, sock *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-conn.SendChannel:
			sock.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			sock.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.CloseChannel:
			return
		}
	}
}

func (ws *WebSocketServer) reply(conn *Connection, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		return
	}
	select {
	case conn.SendChannel <- data:
	case <-conn.CloseChannel:
	}
}

func wsRole(r *http.Request) Role {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return RoleAdmin
	}
	return RoleGuest
}

func generateConnectionID() string {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(raw[:])
}

// subscribe / unsubscribe (WebSocket only)

type subscribeParams struct {
	Streams  []string `json:"streams"`
	Accounts []string `json:"accounts"`
}

type subscribeMethod struct{}

func (m *subscribeMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	if ctx.Connection == nil {
		return nil, ErrNotSupported
	}
	var p subscribeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	for _, stream := range p.Streams {
		switch SubscriptionType(stream) {
		case SubLedger, SubTransactions:
			ctx.Connection.subscribe(SubscriptionType(stream), nil)
		default:
			return nil, NewRpcError("malformedStream", "Stream malformed: "+stream)
		}
	}
	if len(p.Accounts) > 0 {
		ctx.Connection.subscribe(SubAccounts, p.Accounts)
	}
	return map[string]any{}, nil
}

func (m *subscribeMethod) RequiredRole() Role { return RoleGuest }

type unsubscribeMethod struct{}

func (m *unsubscribeMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	if ctx.Connection == nil {
		return nil, ErrNotSupported
	}
	var p subscribeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	for _, stream := range p.Streams {
		ctx.Connection.unsubscribe(SubscriptionType(stream), nil)
	}
	if len(p.Accounts) > 0 {
		ctx.Connection.unsubscribe(SubAccounts, p.Accounts)
	}
	return map[string]any{}, nil
}

func (m *unsubscribeMethod) RequiredRole() Role { return RoleGuest }
