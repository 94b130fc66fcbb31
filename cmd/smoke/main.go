package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"taxigrid/internal/dispatch"
)

// End-to-end check against a running server: health, route, a booking seen
// on the fleet websocket, and a replay of the same Idempotency-Key.
func main() {
	api := envOrDefault("API_BASE", "http://localhost:8000")
	wsBase := envOrDefault("WS_BASE", "ws://localhost:8000")

	fmt.Println("Checking health...")
	var health struct {
		Status   string `json:"status"`
		TreeSize int    `json:"treeSize"`
	}
	if err := getJSON(api+"/health", &health); err != nil || health.Status != "ok" {
		log.Fatalf("health failed: %v %+v", err, health)
	}
	if health.TreeSize == 0 {
		log.Fatalf("server has no taxis")
	}

	events := make(chan envelope, 5)
	conn := subscribeWS(wsBase, dispatch.TopicFleet, events)
	defer conn.Close()

	fmt.Println("Requesting route...")
	pickup := map[string]int{"x": 50, "y": 50}
	var route dispatch.RouteResult
	if err := postJSON(api+"/api/route", "", map[string]any{"pickup": pickup}, &route); err != nil {
		log.Fatalf("route failed: %v", err)
	}
	if route.NearestTaxi == nil {
		log.Fatalf("route returned no taxi")
	}
	fmt.Printf("Nearest taxi %v, %d hops\n", route.NearestTaxi.Location, route.NearestTaxi.GraphDistance)

	target := route.NearestTaxi.Location
	if target.X == 50 && target.Y == 50 {
		fmt.Println("Nearest taxi is already at the pickup; booking in place.")
	}

	fmt.Println("Booking taxi...")
	key := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	body := map[string]any{"pickup": pickup, "taxi": map[string]int{"x": target.X, "y": target.Y}}
	var booking dispatch.Booking
	if err := postJSON(api+"/api/book-taxi", key, body, &booking); err != nil {
		log.Fatalf("book failed: %v", err)
	}
	waitForBooking(events, booking.ID)

	var replay dispatch.Booking
	if err := postJSON(api+"/api/book-taxi", key, body, &replay); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	if replay.ID != booking.ID {
		log.Fatalf("replay returned booking %s, want %s", replay.ID, booking.ID)
	}

	fmt.Println("Smoke test complete.")
}

type envelope struct {
	Type string           `json:"type"`
	Data dispatch.Booking `json:"data"`
}

func getJSON(url string, dst any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func postJSON(url, idemKey string, payload, dst any) error {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func subscribeWS(base, topic string, sink chan<- envelope) *websocket.Conn {
	c, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/ws/%s", base, topic), nil)
	if err != nil {
		log.Fatalf("ws dial failed: %v", err)
	}
	go func() {
		for {
			var env envelope
			if err := c.ReadJSON(&env); err != nil {
				return
			}
			sink <- env
		}
	}()
	return c
}

func waitForBooking(events <-chan envelope, id string) {
	timeout := time.After(8 * time.Second)
	for {
		select {
		case msg := <-events:
			if msg.Data.ID != id {
				continue
			}
			fmt.Printf("WS update received: %s %v -> %v\n", msg.Type, msg.Data.MovedFrom, msg.Data.MovedTo)
			return
		case <-timeout:
			log.Fatalf("booking %s not seen on the websocket", id)
		}
	}
}
