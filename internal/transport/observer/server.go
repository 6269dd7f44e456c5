package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"nebula4x.dev/internal/observerproto"
	"nebula4x.dev/internal/sim/digest"
	"nebula4x.dev/internal/sim/model"
)

// Source supplies the bootstrap document for new observers.
type Source interface {
	Bootstrap() observerproto.BootstrapResponse
}

type Server struct {
	src Source
	log *slog.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Uint64

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	out chan []byte

	mu  sync.Mutex
	sub observerproto.SubscribeMsg
}

func (s *session) subscription() observerproto.SubscribeMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

func NewServer(src Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		src: src,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]*session{},
	}
}

// Sessions is the number of connected observers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Dropped counts DAY messages skipped because an observer fell behind.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// Publish fans one day summary out to every observer, filtered by each
// observer's subscription. Slow observers miss days rather than block the
// caller. It returns how many observers were sent the message.
func (s *Server) Publish(msg observerproto.DayMsg) int {
	msg.Type = observerproto.TypeDay
	msg.ProtocolVersion = observerproto.Version

	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	targets := make([]*session, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, s.sessions[id])
	}
	s.mu.Unlock()

	sent := 0
	for _, sess := range targets {
		b, err := json.Marshal(FilterDay(msg, sess.subscription()))
		if err != nil {
			s.log.Error("observer encode", "day", msg.Day, "err", err)
			continue
		}
		select {
		case sess.out <- b:
			sent++
		default:
			s.dropped.Add(1)
		}
	}
	return sent
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := s.src.Bootstrap()
		resp.ProtocolVersion = observerproto.Version

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(raw)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		sess := &session{out: make(chan []byte, 8), sub: sub}
		s.mu.Lock()
		s.sessions[sid] = sess
		s.mu.Unlock()
		s.log.Info("observer joined", "session", sid, "faction_id", sub.FactionID)
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sid)
			s.mu.Unlock()
			s.log.Info("observer left", "session", sid)
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if next, ok := decodeSubscribe(raw); ok {
				sess.mu.Lock()
				sess.sub = next
				sess.mu.Unlock()
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(raw []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.MaxEvents <= 0 {
		sub.MaxEvents = 256
	}
	if sub.MaxEvents > 4096 {
		sub.MaxEvents = 4096
	}
}

// FilterDay applies a subscription to a day summary. Events are kept in
// sequence order; when over the cap the newest survive.
func FilterDay(msg observerproto.DayMsg, sub observerproto.SubscribeMsg) observerproto.DayMsg {
	all := msg.Events
	kept := make([]observerproto.EventInfo, 0, len(all))
	for _, ev := range all {
		if sub.FactionID != 0 && ev.FactionID != sub.FactionID && ev.FactionID2 != sub.FactionID {
			continue
		}
		kept = append(kept, ev)
	}
	if sub.MaxEvents > 0 && len(kept) > sub.MaxEvents {
		kept = kept[len(kept)-sub.MaxEvents:]
	}
	msg.Omitted += len(all) - len(kept)
	msg.Events = kept
	return msg
}

// DaySummary describes st for observers, carrying the events with
// seq >= fromSeq that are still retained.
func DaySummary(st *model.GameState, fromSeq uint64) observerproto.DayMsg {
	msg := observerproto.DayMsg{
		Type:            observerproto.TypeDay,
		ProtocolVersion: observerproto.Version,
		Day:             st.Date.DaysSinceEpoch(),
		Date:            st.Date.String(),
		StateDigest:     digest.Hex(digest.GameState(st, digest.Options{IncludeEvents: true})),
		NextEventSeq:    st.NextEventSeq,
		Ships:           len(st.Ships),
		Colonies:        len(st.Colonies),
		Fleets:          len(st.Fleets),
	}
	for _, ev := range st.Events {
		if ev.Seq < fromSeq {
			continue
		}
		msg.Events = append(msg.Events, observerproto.EventInfo{
			Seq:        ev.Seq,
			Day:        ev.Day,
			Level:      ev.Level.String(),
			Category:   ev.Category.String(),
			FactionID:  uint64(ev.FactionID),
			FactionID2: uint64(ev.FactionID2),
			SystemID:   uint64(ev.SystemID),
			ShipID:     uint64(ev.ShipID),
			ColonyID:   uint64(ev.ColonyID),
			Message:    ev.Message,
		})
	}
	// Events trimmed before we saw them still count.
	first := max(fromSeq, 1)
	if st.NextEventSeq > first {
		msg.Omitted = max(0, int(st.NextEventSeq-first)-len(msg.Events))
	}
	return msg
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
