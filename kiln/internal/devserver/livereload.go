// Package devserver holds the development-time side channels: the
// LiveReload websocket server and build notifications.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const protocol7 = "http://livereload.com/protocols/official-7"

type message struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Path       string   `json:"path,omitempty"`
	LiveCSS    bool     `json:"liveCSS,omitempty"`
}

// LiveReload speaks the LiveReload 7 protocol on /livereload.
type LiveReload struct {
	Addr string
	Log  *slog.Logger

	mu  sync.Mutex
	mgr *clientManager
	ctx context.Context
}

func NewLiveReload(port int, log *slog.Logger) *LiveReload {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &LiveReload{Addr: fmt.Sprintf(":%d", port), Log: log}
}

// ListenAndServe serves until ctx is cancelled.
func (lr *LiveReload) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", lr.Addr)
	if err != nil {
		return fmt.Errorf("livereload listen: %w", err)
	}
	return lr.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (lr *LiveReload) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mgr := newClientManager()
	lr.mu.Lock()
	lr.mgr, lr.ctx = mgr, ctx
	lr.mu.Unlock()
	go mgr.start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/livereload", websocketHandler(mgr, ctx, lr.Log))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	lr.Log.Info("LiveReload listening", "addr", ln.Addr().String())

	var err error
	select {
	case <-ctx.Done():
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			lr.Log.Warn("LiveReload shutdown", "error", serr)
		}
	case err = <-errCh:
		cancel()
	}
	mgr.wait()

	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// Clients is the number of connected clients that completed the handshake.
func (lr *LiveReload) Clients() int {
	lr.mu.Lock()
	mgr := lr.mgr
	lr.mu.Unlock()
	if mgr == nil {
		return 0
	}
	return int(mgr.count.Load())
}

// Reload tells every client to reload paths. CSS is swapped in place by the
// client when possible. It is a no-op when the server is not running.
func (lr *LiveReload) Reload(paths ...string) {
	lr.mu.Lock()
	mgr, ctx := lr.mgr, lr.ctx
	lr.mu.Unlock()
	if mgr == nil {
		return
	}
	for _, p := range paths {
		select {
		case mgr.broadcast <- message{Command: "reload", Path: p, LiveCSS: true}:
		case <-ctx.Done():
			return
		}
	}
}

type clientManager struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan message
	done       chan struct{}
	count      atomic.Int32
}

type client struct {
	conn   *websocket.Conn
	notify chan message
}

func newClientManager() *clientManager {
	return &clientManager{
		clients:    make(map[*client]bool),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		broadcast:  make(chan message),
		done:       make(chan struct{}),
	}
}

// start runs until ctx is cancelled, then closes every client and drains
// pending registrations so no handler stays blocked.
func (m *clientManager) start(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			for c := range m.clients {
				close(c.notify)
				c.conn.Close()
			}
			m.count.Store(0)
			m.drainChannels()
			return

		case c := <-m.register:
			m.clients[c] = true
			m.count.Store(int32(len(m.clients)))

		case c := <-m.unregister:
			if _, ok := m.clients[c]; ok {
				delete(m.clients, c)
				close(c.notify)
				c.conn.Close()
				m.count.Store(int32(len(m.clients)))
			}

		case msg := <-m.broadcast:
			for c := range m.clients {
				select {
				case c.notify <- msg:
				default:
					// client is behind; it will pick up the next reload
				}
			}
		}
	}
}

func (m *clientManager) drainChannels() {
	for {
		select {
		case c := <-m.register:
			c.conn.Close()
		case c := <-m.unregister:
			c.conn.Close()
		case <-m.broadcast:
		default:
			return
		}
	}
}

func (m *clientManager) wait() {
	<-m.done
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func websocketHandler(manager *clientManager, ctx context.Context, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		default:
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		if err := handshake(conn); err != nil {
			log.Debug("LiveReload handshake failed", "remote", r.RemoteAddr, "error", err)
			conn.Close()
			return
		}

		c := &client{conn: conn, notify: make(chan message, 4)}
		select {
		case manager.register <- c:
		case <-ctx.Done():
			conn.Close()
			return
		}

		// Clients send info and url messages we have no use for; reading
		// is only how a disconnect is noticed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					select {
					case manager.unregister <- c:
					case <-ctx.Done():
					}
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-c.notify:
				if !ok {
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

func handshake(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var hello message
	if err := conn.ReadJSON(&hello); err != nil {
		return err
	}
	if hello.Command != "hello" {
		return fmt.Errorf("expected hello, got %q", hello.Command)
	}
	if !slices.Contains(hello.Protocols, protocol7) {
		return fmt.Errorf("client does not speak %s", protocol7)
	}
	conn.SetReadDeadline(time.Time{})
	return conn.WriteJSON(message{
		Command:    "hello",
		Protocols:  []string{protocol7},
		ServerName: "kiln",
	})
}
