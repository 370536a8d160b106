package http

import (
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/florascope/internal/adapters/nats"
	"github.com/samirrijal/florascope/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsMessage is a client control frame.
type wsMessage struct {
	Action  string `json:"action"`  // subscribe | unsubscribe
	Channel string `json:"channel"` // predictions (default) | viewport
	Session string `json:"session"` // viewport only; empty means every session
}

// wsReply acknowledges a control frame.
type wsReply struct {
	Status  string `json:"status,omitempty"`
	Subject string `json:"subject,omitempty"`
	Error   string `json:"error,omitempty"`
}

// wsSubject maps a control frame onto a NATS subject.
func wsSubject(m wsMessage) (string, bool) {
	switch m.Channel {
	case "", "predictions":
		return natsadapter.SubjectPredictionsAll, true
	case "viewport":
		if m.Session != "" {
			return natsadapter.ViewportSubject(m.Session), true
		}
		return natsadapter.SubjectViewportAll, true
	default:
		return "", false
	}
}

// wsRelay forwards NATS events to one WebSocket connection.
type wsRelay struct {
	conn *websocket.Conn
	nc   *nats.Conn

	writeMu sync.Mutex
	subs    map[string]*nats.Subscription
}

func (r *wsRelay) write(messageType int, data []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteMessage(messageType, data)
}

func (r *wsRelay) reply(v wsReply) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = r.write(websocket.TextMessage, data)
}

func (r *wsRelay) forward(msg *nats.Msg) {
	_ = r.write(websocket.TextMessage, msg.Data)
}

func (r *wsRelay) subscribe(subject string) error {
	if _, ok := r.subs[subject]; ok {
		return nil
	}
	sub, err := r.nc.Subscribe(subject, r.forward)
	if err != nil {
		return err
	}
	r.subs[subject] = sub
	return nil
}

func (r *wsRelay) unsubscribe(subject string) bool {
	sub, ok := r.subs[subject]
	if !ok {
		return false
	}
	_ = sub.Unsubscribe()
	delete(r.subs, subject)
	return true
}

func (r *wsRelay) close() {
	for subject := range r.subs {
		r.unsubscribe(subject)
	}
}

func (r *wsRelay) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (r *wsRelay) handle(m wsMessage) {
	subject, ok := wsSubject(m)
	if !ok {
		r.reply(wsReply{Error: "unknown channel: " + m.Channel})
		return
	}

	switch m.Action {
	case "subscribe":
		if err := r.subscribe(subject); err != nil {
			r.reply(wsReply{Error: "subscribe failed: " + err.Error()})
			return
		}
		r.reply(wsReply{Status: "subscribed", Subject: subject})
	case "unsubscribe":
		if !r.unsubscribe(subject) {
			r.reply(wsReply{Error: "not subscribed to " + subject})
			return
		}
		r.reply(wsReply{Status: "unsubscribed", Subject: subject})
	default:
		r.reply(wsReply{Error: "unknown action: " + m.Action})
	}
}

// WebSocketHandler relays prediction and viewport events to dashboard clients.
// Every client starts subscribed to prediction updates and may add viewport
// feeds with {"action":"subscribe","channel":"viewport","session":"<id>"}.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remote := c.RemoteAddr().String()
		r := &wsRelay{conn: c, nc: nc, subs: make(map[string]*nats.Subscription)}
		defer r.close()

		if err := r.subscribe(natsadapter.SubjectPredictionsAll); err != nil {
			slog.Warn("ws predictions subscribe failed", "remote", remote, "error", err)
			return
		}
		slog.Info("ws client connected", "remote", remote)

		done := make(chan struct{})
		defer close(done)
		go r.keepAlive(done)

		for {
			_, frame, err := c.ReadMessage()
			if err != nil {
				break
			}
			var m wsMessage
			if err := json.Unmarshal(frame, &m); err != nil {
				r.reply(wsReply{Error: "invalid JSON"})
				continue
			}
			r.handle(m)
		}

		slog.Info("ws client disconnected", "remote", remote)
	}
}
