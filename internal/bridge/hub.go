package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
)

// HubConfig carries optional Hub collaborators.
type HubConfig struct {
	Handler EventHandler
	Quotes  QuotePicker
	Now     func() time.Time
	Logger  *slog.Logger
	// CheckOrigin overrides the upgrader origin check. Nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
}

// Hub is a Bridge backed by a single WebSocket-connected agent. A new
// connection replaces the previous one.
type Hub struct {
	handler  EventHandler
	quotes   QuotePicker
	now      func() time.Time
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	agent       *agent
	granted     bool
	onConnect   []func()
	onGranted   []func()
	connections uint64
}

// NewHub constructs a Hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		handler: cfg.Handler,
		quotes:  cfg.Quotes,
		now:     cfg.Now,
		logger:  cfg.Logger.With(slog.String("component", "bridge_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// SetHandler installs the event handler. It must be called before agents connect.
func (h *Hub) SetHandler(handler EventHandler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// OnConnect registers fn to run whenever an agent connects.
func (h *Hub) OnConnect(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.onConnect = append(h.onConnect, fn)
	h.mu.Unlock()
}

// OnPermissionsGranted registers fn to run when the agent reports its
// permissions changing from missing to granted.
func (h *Hub) OnPermissionsGranted(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.onGranted = append(h.onGranted, fn)
	h.mu.Unlock()
}

// Connected reports whether an agent is connected.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.agent != nil
}

// ServeHTTP upgrades the request and serves the agent until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	a := &agent{
		conn: conn,
		send: make(chan Command, sendBuffer),
		done: make(chan struct{}),
	}
	previous, listeners := h.register(a)
	if previous != nil {
		previous.close()
	}
	h.logger.InfoContext(r.Context(), "monitoring agent connected", "remote", r.RemoteAddr)
	for _, fn := range listeners {
		fn()
	}

	go h.writePump(a)
	h.readPump(r.Context(), a)
}

func (h *Hub) register(a *agent) (*agent, []func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous := h.agent
	h.agent = a
	h.granted = false
	h.connections++
	a.id = h.connections
	return previous, append([]func(){}, h.onConnect...)
}

func (h *Hub) unregister(a *agent) {
	h.mu.Lock()
	if h.agent == a {
		h.agent = nil
		h.granted = false
	}
	h.mu.Unlock()
	a.close()
}

func (h *Hub) readPump(ctx context.Context, a *agent) {
	defer func() {
		h.unregister(a)
		h.logger.Info("monitoring agent disconnected", "agent", a.id)
	}()

	a.conn.SetReadLimit(maxMessageSize)
	_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))
	a.conn.SetPongHandler(func(string) error {
		return a.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx = logging.ContextWithLogger(context.WithoutCancel(ctx), h.logger)
	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("agent read failed", "error", err)
			}
			return
		}
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			h.logger.Warn("malformed agent event", "error", err)
			continue
		}
		h.dispatch(ctx, event)
	}
}

func (h *Hub) dispatch(ctx context.Context, event Event) {
	var granted []func()
	h.mu.Lock()
	handler := h.handler
	if event.Type == EventPermissions && event.Granted != nil {
		if *event.Granted && !h.granted {
			granted = append(granted, h.onGranted...)
		}
		h.granted = *event.Granted
	}
	h.mu.Unlock()

	if event.Type == EventPermissions {
		h.logger.InfoContext(ctx, "agent permissions reported", "granted", event.Granted != nil && *event.Granted)
		for _, fn := range granted {
			fn()
		}
		return
	}
	if handler == nil {
		return
	}

	switch event.Type {
	case EventAppChanged:
		at := h.now()
		if event.At != nil {
			at = *event.At
		}
		handler.OnForegroundAppChanged(ctx, event.PackageName, event.AppName, at)
	case EventAppBlocked:
		handler.OnAppBlocked(ctx, event.PackageName)
	case EventEmergencyUnlock:
		handler.OnEmergencyUnlock(ctx, event.PackageName)
	case EventDeviceUnlocked:
		handler.OnDeviceUnlocked(ctx)
	default:
		h.logger.WarnContext(ctx, "unknown agent event", "type", event.Type)
	}
}

func (h *Hub) writePump(a *agent) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = a.conn.Close()
	}()

	for {
		select {
		case cmd := <-a.send:
			_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := a.conn.WriteJSON(cmd); err != nil {
				h.logger.Warn("agent write failed", "error", err, "command", cmd.Type)
				return
			}
		case <-ticker.C:
			_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := a.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-a.done:
			_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = a.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (h *Hub) send(ctx context.Context, cmd Command) error {
	h.mu.Lock()
	a := h.agent
	h.mu.Unlock()
	if a == nil {
		return ErrNoAgent
	}

	select {
	case a.send <- cmd:
		return nil
	case <-a.done:
		return ErrNoAgent
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrAgentBusy, ctx.Err())
	}
}

// SetSchedules implements Bridge.
func (h *Hub) SetSchedules(ctx context.Context, schedules []application.Schedule) error {
	if schedules == nil {
		schedules = []application.Schedule{}
	}
	return h.send(ctx, Command{Type: CommandSetSchedules, Schedules: schedules})
}

// Lock implements Bridge. The command carries a quote when a QuotePicker is
// configured; a failed pick still sends the fallback quote.
func (h *Hub) Lock(ctx context.Context, packageName string, durationMinutes *int) error {
	cmd := Command{Type: CommandLock, PackageName: packageName, DurationMinutes: durationMinutes}
	if h.quotes != nil {
		quote, err := h.quotes.RandomQuote(ctx)
		if err != nil {
			h.logger.WarnContext(ctx, "quote pick failed", "error", err, "package", packageName)
		}
		cmd.Quote = &quote
	}
	return h.send(ctx, cmd)
}

// Unlock implements Bridge.
func (h *Hub) Unlock(ctx context.Context, packageName string) error {
	return h.send(ctx, Command{Type: CommandUnlock, PackageName: packageName})
}

// HasRequiredPermissions reports the permission state last sent by the agent.
func (h *Hub) HasRequiredPermissions(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.agent == nil {
		return false, ErrNoAgent
	}
	return h.granted, nil
}

// RequestPermissions asks the agent to prompt for its permissions.
func (h *Hub) RequestPermissions(ctx context.Context) error {
	return h.send(ctx, Command{Type: CommandRequestPermissions})
}

type agent struct {
	id        uint64
	conn      *websocket.Conn
	send      chan Command
	done      chan struct{}
	closeOnce sync.Once
}

func (a *agent) close() {
	a.closeOnce.Do(func() {
		close(a.done)
	})
}
