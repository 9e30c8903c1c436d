package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"roguelite.ai/internal/protocol"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name      = flag.String("name", "bot", "player name")
		worldPref = flag.String("world", "", "preferred dimension")
		dropSlot  = flag.Int("drop_slot", -1, "inventory slot to drop from periodically (-1 disables)")
		dropEvery = flag.Duration("drop_every", 10*time.Second, "drop interval")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("bot", *name)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Error("dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		WorldPreference: *worldPref,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Error("send HELLO failed", "error", err)
		os.Exit(1)
	}

	msgs := make(chan []byte, 16)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Info("connection closed", "error", err)
				return
			}
			msgs <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var drops <-chan time.Time
	if *dropSlot >= 0 {
		t := time.NewTicker(*dropEvery)
		defer t.Stop()
		drops = t.C
	}
	seq := 0
	for {
		select {
		case <-stop:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case <-drops:
			seq++
			act := protocol.ActMsg{
				Type:            protocol.TypeAct,
				ProtocolVersion: protocol.Version,
				Ref:             fmt.Sprintf("drop_%d", seq),
				Action:          protocol.ActDrop,
				Slot:            *dropSlot,
				Count:           1,
			}
			if err := conn.WriteJSON(act); err != nil {
				logger.Error("send ACT failed", "error", err)
				return
			}
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(logger, msg)
		}
	}
}

func handle(logger *slog.Logger, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if json.Unmarshal(msg, &w) == nil {
			logger.Info("WELCOME", "player_id", w.PlayerID, "world", w.CurrentWorldID, "day_ticks", w.WorldParams.DayTicks)
		}
	case protocol.TypeAck:
		var a protocol.AckMsg
		if json.Unmarshal(msg, &a) == nil && !a.Accepted {
			logger.Warn("ACK rejected", "ack_for", a.AckFor, "code", a.Code, "message", a.Message)
		}
	case protocol.TypeNotice:
		var n protocol.NoticeMsg
		if json.Unmarshal(msg, &n) == nil {
			logger.Info("NOTICE", "tick", n.Tick, "text", n.Text)
		}
	}
}
