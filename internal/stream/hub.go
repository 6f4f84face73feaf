package stream

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Jiang6021/PickleBet/pkg/contracts/events"
)

// ClientMsg é a mensagem de controle enviada pelo cliente WebSocket
type ClientMsg struct {
	Type    string `json:"type"` // "subscribe" | "unsubscribe" | "ping"
	MatchID string `json:"matchId"`
}

// client embrulha a conexão com um mutex de escrita próprio
// gorilla/websocket permite um único escritor por conexão; o pong do
// HandleWS e o Broadcast disputam a mesma conexão
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas por partida
// subs: mapeia matchID para o conjunto de clientes inscritos
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}

	OnConnect    func() // métricas (gauge++)
	OnDisconnect func() // métricas (gauge--)
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Cada cliente pode se inscrever em múltiplas partidas e responde a pings
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.OnConnect != nil {
		h.OnConnect()
	}
	defer func() {
		if h.OnDisconnect != nil {
			h.OnDisconnect()
		}
	}()

	cl := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[msg.MatchID]; !ok {
				h.subs[msg.MatchID] = make(map[*client]struct{})
			}
			h.subs[msg.MatchID][cl] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.MatchID]; ok {
				delete(m, cl)
				if len(m) == 0 {
					delete(h.subs, msg.MatchID)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = cl.writeJSON(map[string]string{"type": "pong"})
		}
	}

	// Remove o cliente de todas as assinaturas ao desconectar
	h.mu.Lock()
	for _, set := range h.subs {
		delete(set, cl)
	}
	h.mu.Unlock()
}

// Broadcast envia o snapshot de pool para os clientes inscritos na partida
// O conjunto é copiado ainda sob o RLock; o HandleWS muta o mapa interno
// sob o Lock e iterar o mapa vivo fora do lock seria corrida
func (h *Hub) Broadcast(upd events.PoolUpdate) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.subs[upd.MatchID]))
	for c := range h.subs[upd.MatchID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, err := json.Marshal(upd)
	if err != nil {
		return
	}
	for _, c := range conns {
		_ = c.write(websocket.TextMessage, b)
	}
}
