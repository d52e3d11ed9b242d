package rpc

import (
	"encoding/json"
	"sync"
)

// Connection is one subscriber connection, owned by the WebSocket
// server.
type Connection struct {
	ID           string
	SendChannel  chan []byte
	CloseChannel chan struct{}

	mu      sync.RWMutex
	streams map[SubscriptionType]bool
	// accounts holds addresses the connection follows on the accounts
	// stream.
	accounts map[string]bool
}

func newConnection(id string) *Connection {
	return &Connection{
		ID:           id,
		SendChannel:  make(chan []byte, 256),
		CloseChannel: make(chan struct{}),
		streams:      make(map[SubscriptionType]bool),
		accounts:     make(map[string]bool),
	}
}

func (c *Connection) subscribe(stream SubscriptionType, accounts []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stream == SubAccounts {
		for _, account := range accounts {
			c.accounts[account] = true
		}
		if len(c.accounts) > 0 {
			c.streams[SubAccounts] = true
		}
		return
	}
	c.streams[stream] = true
}

func (c *Connection) unsubscribe(stream SubscriptionType, accounts []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stream == SubAccounts {
		if len(accounts) == 0 {
			c.accounts = make(map[string]bool)
		}
		for _, account := range accounts {
			delete(c.accounts, account)
		}
		if len(c.accounts) == 0 {
			delete(c.streams, SubAccounts)
		}
		return
	}
	delete(c.streams, stream)
}

// wants reports whether the connection should receive a message on the
// stream. For the accounts stream the affected accounts are matched
// against the follow list.
func (c *Connection) wants(stream SubscriptionType, affected []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.streams[stream] {
		return false
	}
	if stream != SubAccounts {
		return true
	}
	for _, account := range affected {
		if c.accounts[account] {
			return true
		}
	}
	return false
}

// SubscriptionManager tracks subscriber connections and fans events out
// to them.
type SubscriptionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{connections: make(map[string]*Connection)}
}

func (m *SubscriptionManager) AddConnection(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn.ID] = conn
}

func (m *SubscriptionManager) RemoveConnection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, id)
}

func (m *SubscriptionManager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// SubscriberCount returns the number of connections on a stream.
func (m *SubscriptionManager) SubscriberCount(stream SubscriptionType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, conn := range m.connections {
		conn.mu.RLock()
		if conn.streams[stream] {
			count++
		}
		conn.mu.RUnlock()
	}
	return count
}

// Broadcast sends a message to every connection subscribed to the
// stream. Slow connections drop messages rather than block the
// publisher.
func (m *SubscriptionManager) Broadcast(stream SubscriptionType, message any, affected []string) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.connections {
		if !conn.wants(stream, affected) {
			continue
		}
		select {
		case conn.SendChannel <- data:
		default:
		}
	}
}
