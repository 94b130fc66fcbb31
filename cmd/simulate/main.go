package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"taxigrid/internal/dispatch"
	"taxigrid/internal/geom"
	"taxigrid/internal/logger"
)

type pointPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func payload(p geom.Point) pointPayload { return pointPayload{X: p.X, Y: p.Y} }

// Simulates riders against a running server: each round asks for the nearest
// taxis, books the best one and starts the ride to the dropoff.
func main() {
	api := flag.String("api", "http://localhost:8000", "API base URL")
	rounds := flag.Int("count", 10, "number of rides to simulate")
	interval := flag.Duration("interval", time.Second, "pause between rides")
	span := flag.Int("span", 100, "pickups and dropoffs are drawn from [0, span)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	log := logger.Setup()
	client := &http.Client{Timeout: 5 * time.Second}
	rng := rand.New(rand.NewSource(*seed))

	failed := 0
	for i := 0; i < *rounds; i++ {
		pickup := geom.Pt(rng.Intn(*span), rng.Intn(*span))
		dropoff := geom.Pt(rng.Intn(*span), rng.Intn(*span))
		if pickup == dropoff {
			dropoff.X++
		}
		if err := simulateRide(client, *api, pickup, dropoff, fmt.Sprintf("sim-%d-%d", *seed, i)); err != nil {
			failed++
			log.Warn("ride_failed", "round", i+1, "pickup", pickup.String(), "err", err)
		} else {
			log.Info("ride_done", "round", i+1, "pickup", pickup.String(), "dropoff", dropoff.String())
		}
		if i+1 < *rounds {
			time.Sleep(*interval)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func simulateRide(client *http.Client, api string, pickup, dropoff geom.Point, idemKey string) error {
	var route dispatch.RouteResult
	err := postJSON(client, api+"/api/route", "", map[string]any{
		"pickup":  payload(pickup),
		"dropoff": payload(dropoff),
	}, &route)
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}
	if route.NearestTaxi == nil {
		return fmt.Errorf("route: no taxi returned")
	}
	taxi := route.NearestTaxi.Location

	var booking dispatch.Booking
	if err := postJSON(client, api+"/api/book-taxi", idemKey, map[string]any{
		"pickup": payload(pickup),
		"taxi":   payload(taxi),
	}, &booking); err != nil {
		return fmt.Errorf("book %v: %w", taxi, err)
	}

	var ride dispatch.Booking
	if err := postJSON(client, api+"/api/start-ride", "", map[string]any{
		"dropoff": payload(dropoff),
		"taxi":    payload(booking.MovedTo),
	}, &ride); err != nil {
		return fmt.Errorf("start ride: %w", err)
	}
	return nil
}

func postJSON(client *http.Client, url, idemKey string, body, dst any) error {
	raw, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("status %s: %s", resp.Status, apiErr.Error)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
