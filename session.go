/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Fingerpick web sessions
//
// Each session is one shared touch surface, usually a phone or tablet lying
// on a table. The browser forwards raw touch batches over a websocket and
// draws whatever snapshot the server sends back.
//
// Features:
// - WebSockets per session ID: /pick/:session and /pick/:session/ws
// - First connection to a session is the touch surface; later ones only watch
// - A reconnect carrying the surface's client cookie takes the surface back
// - Surface disconnecting counts as a cancelled touch sequence, and the
//   longest-connected viewer takes over
// - Haptic requests are sent to the surface only, snapshots to everyone
// - Sessions auto-reaped after configurable idle timeout
// - Random 8-char session IDs via crypto/rand, with server-side collision check
// - PNG QR code of the session URL, backed by go-qrcode

package main

import (
	"crypto/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/fingerpick/picker"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	clientCookieName = "fingerpick_id"
	maxBatchContacts = 32
	sendBuffer       = 32
	writeWait        = 5 * time.Second
)

// A client that stops answering pings is dropped after pongWait, so a
// sleeping phone cannot hold the surface.
var (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Messages coming from clients
type ClientMessage struct {
	Type    string           `json:"type"`              // "touch"
	Kind    string           `json:"kind,omitempty"`    // "down", "move", "up", "cancelled"
	Touches []picker.Contact `json:"touches,omitempty"` // contacts changed by this event
}

// SessionInfoMessage is sent immediately on connect so the client knows
// whether its touches count and how long the timers run.
type SessionInfoMessage struct {
	Type        string `json:"type"` // "session_info"
	SessionID   string `json:"session_id"`
	IsSurface   bool   `json:"is_surface"`
	MaxFingers  int    `json:"max_fingers"`
	StabilityMs int64  `json:"stability_ms"`
	CountdownMs int64  `json:"countdown_ms"`
}

// SnapshotMessage carries the full render state.
type SnapshotMessage struct {
	Type string `json:"type"` // "snapshot"
	picker.Snapshot
}

// HapticMessage asks the surface to play a feedback pattern.
type HapticMessage struct {
	Type   string        `json:"type"` // "haptic"
	Haptic picker.Haptic `json:"haptic"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	clientID string
	joined   uint64
}

type touchRequest struct {
	client   *Client
	kind     picker.TouchKind
	contacts []picker.Contact
}

// Hub owns one game. Every mutation of the game, including timer callbacks,
// happens on the run goroutine.
type Hub struct {
	id  string
	cfg *Config

	clients map[*Client]bool
	surface *Client
	joins   uint64

	register chan *Client
	unreg    chan *Client
	touches  chan touchRequest
	timers   chan func()
	done     chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time

	game      *picker.Game
	lastPhase picker.Phase
}

func newHub(cfg *Config, sessionID string) *Hub {
	now := time.Now()

	h := &Hub{
		id:         sessionID,
		cfg:        cfg,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		touches:    make(chan touchRequest),
		timers:     make(chan func()),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	h.game = picker.New(cfg.game(), picker.NewQueueClock(h.timers, h.done), nil, picker.Hooks{
		Haptic: h.sendHaptic,
		Render: h.broadcastSnapshot,
	})

	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.markActive()

			h.joins++
			c.joined = h.joins

			// The same browser reconnecting, usually a reload that beat its
			// old socket's close. Touches from the old page are gone.
			if prev := h.surface; prev != nil && prev.clientID == c.clientID {
				h.surface = nil
				h.game.OnTouchEvent(picker.Cancelled, nil)
				h.sendSessionInfo(prev, false)
			}

			h.clients[c] = true

			if h.surface == nil {
				h.surface = c
			}

			logf(h.cfg, "GAMES: Client %s joined session %s (surface: %t)", c.clientID, h.id, h.surface == c)

			h.sendSessionInfo(c, h.surface == c)
			h.deliver(c, SnapshotMessage{Type: "snapshot", Snapshot: h.game.Snapshot()})

		case c := <-h.unreg:
			h.markActive()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

			logf(h.cfg, "GAMES: Client %s left session %s", c.clientID, h.id)

			// Losing the surface is the same as the OS cancelling every touch.
			if h.surface == c {
				h.surface = nil
				h.game.OnTouchEvent(picker.Cancelled, nil)
				h.promote()
			}

		case tr := <-h.touches:
			if tr.client != h.surface {
				continue
			}

			h.markActive()
			h.game.OnTouchEvent(tr.kind, tr.contacts)

		case fire := <-h.timers:
			fire()

		case <-h.done:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.surface = nil

			return
		}
	}
}

func (h *Hub) sendSessionInfo(c *Client, isSurface bool) {
	game := h.game.Config()

	h.deliver(c, SessionInfoMessage{
		Type:        "session_info",
		SessionID:   h.id,
		IsSurface:   isSurface,
		MaxFingers:  game.MaxFingers,
		StabilityMs: millis(game.StabilityDelay),
		CountdownMs: millis(game.CountdownDelay),
	})
}

// promote hands the surface to the viewer that has been connected longest.
func (h *Hub) promote() {
	var next *Client
	for c := range h.clients {
		if next == nil || c.joined < next.joined {
			next = c
		}
	}
	if next == nil {
		return
	}

	h.surface = next
	h.sendSessionInfo(next, true)

	logf(h.cfg, "GAMES: Client %s is now the surface of session %s", next.clientID, h.id)
}

func (h *Hub) markActive() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastActive
}

// stop ends the run loop, which disconnects every client.
func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// deliver never blocks the run loop; a lagging client misses messages and
// catches up on the next snapshot.
func (h *Hub) deliver(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) broadcastSnapshot(snap picker.Snapshot) {
	if snap.Phase != h.lastPhase {
		logf(h.cfg, "GAMES: Session %s went from %s to %s with %d finger(s)", h.id, h.lastPhase, snap.Phase, snap.FingerCount)
		h.lastPhase = snap.Phase
	}

	msg := SnapshotMessage{Type: "snapshot", Snapshot: snap}
	for c := range h.clients {
		h.deliver(c, msg)
	}
}

func (h *Hub) sendHaptic(kind picker.Haptic) {
	if h.surface == nil {
		return
	}

	h.deliver(h.surface, HapticMessage{Type: "haptic", Haptic: kind})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// cookieClientID returns the id stored in the request cookie, if it holds a valid one.
func cookieClientID(r *http.Request) (string, bool) {
	c, err := r.Cookie(clientCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

func getOrSetClientID(w http.ResponseWriter, r *http.Request) string {
	if id, ok := cookieClientID(r); ok {
		return id
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// SessionManager holds a set of hubs keyed by session ID, so each
// $path/$session is its own isolated game.
type SessionManager struct {
	cfg         *Config
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	quit        chan struct{}
	quitOnce    sync.Once
}

func newSessionManager(cfg *Config, idleTimeout time.Duration) *SessionManager {
	sm := &SessionManager{
		cfg:         cfg,
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
		quit:        make(chan struct{}),
	}
	if idleTimeout > 0 {
		go sm.reaperLoop()
	}
	return sm
}

func (sm *SessionManager) getHub(sessionID string) *Hub {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if hub, ok := sm.hubs[sessionID]; ok {
		return hub
	}

	hub := newHub(sm.cfg, sessionID)
	sm.hubs[sessionID] = hub
	go hub.run()
	return hub
}

// newSessionID generates a crypto-random session ID and ensures it doesn't
// collide with existing sessions.
func (sm *SessionManager) newSessionID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		sm.mu.Lock()
		_, exists := sm.hubs[id]
		sm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (sm *SessionManager) reaperLoop() {
	ticker := time.NewTicker(sm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-sm.quit:
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-sm.idleTimeout)

		sm.mu.Lock()
		for id, hub := range sm.hubs {
			if hub.idleSince().Before(cutoff) {
				delete(sm.hubs, id)
				hub.stop()
				logf(sm.cfg, "GAMES: Reaped idle session %s after %s", id, time.Since(hub.createdAt).Round(time.Second))
			}
		}
		sm.mu.Unlock()
	}
}

// Close stops the reaper and every running session.
func (sm *SessionManager) Close() {
	sm.quitOnce.Do(func() {
		close(sm.quit)
	})

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, hub := range sm.hubs {
		delete(sm.hubs, id)
		hub.stop()
	}
}

// WebSocket handler that picks the hub based on :session
func serveWSForManager(cfg *Config, sm *SessionManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("session")
		if sessionID == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}

		// The upgrade hijacks the response, so a cookie set here would be lost.
		id, ok := cookieClientID(r)
		if !ok {
			id = uuid.NewString()
		}

		hub := sm.getHub(sessionID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Websocket upgrade for %s failed: %v", realIP(r), err)
			return
		}
		conn.SetReadLimit(16 << 10)

		client := &Client{
			conn:     conn,
			send:     make(chan any, sendBuffer),
			clientID: id,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "touch":
			req, err := decodeTouch(c, msg)
			if err != nil {
				logf(h.cfg, "TOUCH: Ignoring message from %s: %v", c.clientID, err)
				continue
			}

			select {
			case h.touches <- req:
			case <-h.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func decodeTouch(c *Client, msg ClientMessage) (touchRequest, error) {
	kind, err := picker.ParseTouchKind(msg.Kind)
	if err != nil {
		return touchRequest{}, err
	}

	contacts := msg.Touches
	if len(contacts) > maxBatchContacts {
		contacts = contacts[:maxBatchContacts]
	}

	return touchRequest{client: c, kind: kind, contacts: contacts}, nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// QR handler: generates a PNG QR code for the current session URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sessionID := ps.ByName("session")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:session/qr; strip trailing "/qr" to get the session URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func serveClient(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/picker/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "client unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetClientID(w, r)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// redirectNewSession handles GET /path by generating a new random session ID
// (with server-side collision detection) and redirecting to /path/:session.
func redirectNewSession(cfg *Config, path string, sm *SessionManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sessionID := sm.newSessionID()
		logf(cfg, "GAMES: Created session %s/%s", path, sessionID)
		http.Redirect(w, r, cfg.prefix+path+"/"+sessionID, http.StatusTemporaryRedirect)
	}
}

// registerPickerGame sets up routes so that:
//   - $path                   → redirects to new random session (8-char ID)
//   - $path/:session          → HTML touch client
//   - $path/:session/ws       → WebSocket for that session
//   - $path/:session/qr       → PNG QR code for that session URL
func registerPickerGame(cfg *Config, path string, mux *httprouter.Router, errs chan<- error) *SessionManager {
	sm := newSessionManager(cfg, cfg.sessionTimeout)

	mux.GET(cfg.prefix+path, redirectNewSession(cfg, path, sm))

	mux.GET(cfg.prefix+path+"/:session", serveClient(cfg, errs))

	mux.GET(cfg.prefix+path+"/:session/ws", serveWSForManager(cfg, sm))

	mux.GET(cfg.prefix+path+"/:session/qr", qrHandler)

	return sm
}
