package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tagarena.dev/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "watch", "client name")
		every  = flag.Int("every", 30, "print one STATE every N ticks")
		events = flag.Bool("events", true, "print gameplay events as they arrive")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities: protocol.HelloCapabilities{
			MaxQueue: 16,
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s level=%s players=%d/%d tick_rate=%d seed=%d",
				w.SessionID, w.Round.LevelID, w.Round.ActivePlayers, w.Round.Slots, w.Round.TickRateHz, w.Round.Seed)

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			if *events {
				for _, e := range st.Events {
					if line := describeEvent(e); line != "" {
						logger.Print(line)
					}
				}
			}
			if *every > 0 && st.Tick%uint64(*every) == 0 {
				logger.Print(summary(&st))
			}

		case protocol.TypeError:
			var em protocol.ErrorMsg
			if err := json.Unmarshal(msg, &em); err == nil {
				logger.Printf("ERROR %s: %s", em.Code, em.Message)
			}
		}
	}
}

func summary(st *protocol.StateMsg) string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%d now=%.2f catcher=%d", st.Tick, st.Now, st.Catcher)
	for _, a := range st.Actors {
		tag := " "
		if a.IsCatcher {
			tag = "*"
		}
		fmt.Fprintf(&b, " | %s%d (%.1f,%.1f) %s", tag, a.Slot, a.Pos[0], a.Pos[1], a.JumpState)
		if len(a.Status) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(a.Status, ","))
		}
	}
	fmt.Fprintf(&b, " | tokens=%d", len(st.Tokens))
	return b.String()
}

func describeEvent(e protocol.Event) string {
	switch e["type"] {
	case "caught":
		how := "touch"
		if e["by_drop"] == true {
			how = "drop"
		}
		return fmt.Sprintf("CAUGHT slot=%v by=%v (%s)", e["slot"], e["other"], how)
	case "stunned":
		return fmt.Sprintf("STUNNED slot=%v cause=%v until=%v", e["slot"], e["cause"], e["until"])
	case "effect_applied":
		return fmt.Sprintf("EFFECT %v %v -> %v slots=%v for %.2fs", e["effect"], e["variant"], e["target"], e["slots"], e["duration"])
	case "restarted":
		return "RESTART"
	}
	return ""
}
