package observer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"roguelite.ai/internal/observerproto"
	"roguelite.ai/internal/roguelite"
	"roguelite.ai/internal/sim/multiworld"
)

const (
	defaultInterval = time.Second
	minInterval     = 100 * time.Millisecond
	maxInterval     = time.Minute
)

// ResetCounter tallies reset cycles for status frames and /metrics.
type ResetCounter struct {
	cycles  atomic.Uint64
	lastDay atomic.Int64
	items   atomic.Uint64
	storage atomic.Uint64
}

func NewResetCounter() *ResetCounter {
	c := &ResetCounter{}
	c.lastDay.Store(roguelite.NeverReset)
	return c
}

func (c *ResetCounter) RecordCycle(cy roguelite.Cycle) {
	t := cy.Storage.Total
	c.cycles.Add(1)
	c.lastDay.Store(cy.Day)
	c.items.Add(uint64(cy.Items.Total))
	c.storage.Add(uint64(t.Chests + t.Furnaces + t.ChestBoats + t.MinecartChests))
}

func (c *ResetCounter) Status() observerproto.ResetStatus {
	return observerproto.ResetStatus{
		Cycles:         c.cycles.Load(),
		LastDay:        c.lastDay.Load(),
		ItemsRemoved:   c.items.Load(),
		StorageRemoved: c.storage.Load(),
	}
}

type Server struct {
	srv      *multiworld.Server
	dayTicks int64
	resets   *ResetCounter
	log      *slog.Logger

	upgrader websocket.Upgrader
}

func NewServer(srv *multiworld.Server, dayTicks int64, resets *ResetCounter, logger *slog.Logger) *Server {
	if dayTicks <= 0 {
		dayTicks = roguelite.DefaultDayTicks
	}
	if resets == nil {
		resets = NewResetCounter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv:      srv,
		dayTicks: dayTicks,
		resets:   resets,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Status builds a frame from the latest published metrics.
func (s *Server) Status() observerproto.StatusMsg {
	m := s.srv.Metrics()
	msg := observerproto.StatusMsg{
		Type:            observerproto.TypeStatus,
		ProtocolVersion: observerproto.Version,
		Tick:            m.Tick,
		PlayersOnline:   m.PlayersOnline,
		LastStepMS:      float64(m.LastStep.Microseconds()) / 1000,
		Resets:          s.resets.Status(),
	}
	for _, l := range m.Levels {
		day, tod := roguelite.SplitClock(l.DayTime, s.dayTicks)
		msg.Levels = append(msg.Levels, observerproto.LevelStatus{
			ID:             l.ID,
			Day:            day,
			TimeOfDay:      tod,
			ResidentChunks: l.ResidentChunks,
			TickingChunks:  l.TickingChunks,
			ItemEntities:   l.ItemEntities,
			Entities:       l.Entities,
		})
	}
	return msg
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Tick:            s.srv.CurrentTick(),
			TickRateHz:      s.srv.TickRateHz(),
			DayTicks:        s.dayTicks,
			BlockPalette:    s.srv.Catalogs().Blocks.Palette,
		}
		for _, spec := range s.srv.Config().Worlds {
			resp.Levels = append(resp.Levels, observerproto.LevelInfo{ID: spec.ID, Type: spec.Type, MinY: spec.MinY, MaxY: spec.MaxY})
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !IsLoopbackRemote(r.RemoteAddr) {
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
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		interval, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		intervals := make(chan time.Duration, 1)

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				if err := s.push(conn); err != nil {
					cancel()
					return
				}
				select {
				case <-ctx.Done():
					return
				case d := <-intervals:
					t.Reset(d)
				case <-t.C:
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if d, ok := parseSubscribe(msg); ok {
				select {
				case intervals <- d:
				default:
				}
			}
		}

		cancel()
		<-done
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

func (s *Server) push(conn *websocket.Conn) error {
	b, err := json.Marshal(s.Status())
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func parseSubscribe(msg []byte) (time.Duration, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return 0, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return 0, false
	}
	d := time.Duration(sub.IntervalMS) * time.Millisecond
	switch {
	case d <= 0:
		d = defaultInterval
	case d < minInterval:
		d = minInterval
	case d > maxInterval:
		d = maxInterval
	}
	return d, true
}

// IsLoopbackRemote reports whether an http.Request.RemoteAddr is a loopback address.
func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
