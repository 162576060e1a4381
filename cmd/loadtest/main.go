package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"go-pedidos/internal/auth"
	"go-pedidos/internal/console"
)

var (
	wsURL    = flag.String("url", "ws://localhost:8080/ws", "console websocket url")
	consoles = flag.Int("consoles", 50, "concurrent operator consoles")
	duration = flag.Duration("duration", 30*time.Second, "how long each console stays connected")
	interval = flag.Duration("interval", 2*time.Second, "delay between commands per console")
)

type stats struct {
	connected atomic.Int64
	failed    atomic.Int64
	frames    atomic.Int64
	errors    atomic.Int64
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	token, err := operatorToken()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	log.Printf("🔥 STARTING LOAD TEST: %d consoles for %s", *consoles, *duration)
	var st stats
	var wg sync.WaitGroup
	for i := 0; i < *consoles; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runConsole(id, token, &st)
		}(i)
	}
	wg.Wait()

	log.Printf("✅ LOAD TEST COMPLETE: connected=%d failed=%d frames=%d error_notifications=%d",
		st.connected.Load(), st.failed.Load(), st.frames.Load(), st.errors.Load())
}

// operatorToken uses LOADTEST_TOKEN or signs a short-lived token with
// JWT_SECRET, shaped like the hosted auth's access tokens.
func operatorToken() (string, error) {
	if tok := os.Getenv("LOADTEST_TOKEN"); tok != "" {
		return tok, nil
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", fmt.Errorf("set LOADTEST_TOKEN or JWT_SECRET")
	}
	aud := os.Getenv("JWT_AUDIENCE")
	if aud == "" {
		aud = "authenticated"
	}
	claims := auth.Claims{
		Email: "loadtest@pedidos.local",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Audience:  jwt.ClaimStrings{aud},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(*duration + time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func runConsole(id int, token string, st *stats) {
	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("❌ bad url: %v", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		st.failed.Add(1)
		log.Printf("❌ WS Connect Fail [%d]: %v", id, err)
		return
	}
	defer conn.Close()
	st.connected.Add(1)

	keys := make(chan []string, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var frame struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			st.frames.Add(1)
			switch frame.Type {
			case console.TypeNotification:
				var n struct {
					Severity string `json:"severity"`
				}
				if json.Unmarshal(frame.Data, &n) == nil && n.Severity == "error" {
					st.errors.Add(1)
				}
			case console.TypeConversations:
				var list []struct {
					Key string `json:"conversation_id"`
				}
				if json.Unmarshal(frame.Data, &list) == nil {
					ids := make([]string, len(list))
					for i, c := range list {
						ids[i] = c.Key
					}
					select {
					case keys <- ids:
					default:
					}
				}
			}
		}
	}()

	var known []string
	deadline := time.After(*duration)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for n := 0; ; n++ {
		select {
		case <-deadline:
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-done
			return
		case <-done:
			return
		case known = <-keys:
		case <-ticker.C:
			cmd := console.Inbound{Type: console.TypeRefreshDashboard}
			if len(known) > 0 && n%2 == 0 {
				cmd = console.Inbound{Type: console.TypeSelect, ConversationID: known[(id+n)%len(known)]}
			}
			if err := conn.WriteJSON(cmd); err != nil {
				log.Printf("❌ Send Fail [%d]: %v", id, err)
				return
			}
		}
	}
}
