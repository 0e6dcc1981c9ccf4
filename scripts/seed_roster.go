// seed_roster.go — standalone script to seed pilots and trips via the AutoPilot API.
//
// The input file holds a JSON document with "pilots" and "trips" arrays in the
// same shape the API accepts.
//
// Usage:
//
//	go run scripts/seed_roster.go -data seed.json -api http://localhost:8700 -dispatcher seed
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
)

type seedFile struct {
	Pilots []json.RawMessage `json:"pilots"`
	Trips  []json.RawMessage `json:"trips"`
}

func main() {
	dataPath := flag.String("data", "seed.json", "path to seed data file")
	apiURL := flag.String("api", "http://localhost:8700", "AutoPilot API base URL")
	dispatcher := flag.String("dispatcher", "seed", "X-Dispatcher-ID header value")
	dryRun := flag.Bool("dry-run", false, "print counts without posting")
	flag.Parse()

	raw, err := os.ReadFile(*dataPath)
	if err != nil {
		log.Fatalf("read seed file: %v", err)
	}

	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatalf("parse seed file: %v", err)
	}

	log.Printf("parsed %d pilots and %d trips from %s", len(seed.Pilots), len(seed.Trips), *dataPath)

	if *dryRun {
		for i, p := range seed.Pilots {
			fmt.Printf("pilot [%d] %s\n", i+1, summarize(p, "short_code"))
		}
		for i, t := range seed.Trips {
			fmt.Printf("trip  [%d] %s\n", i+1, summarize(t, "id"))
		}
		return
	}

	client := &http.Client{}
	pilotsOK := post(client, *apiURL+"/api/v1/pilots", *dispatcher, seed.Pilots, "pilot")
	tripsOK := post(client, *apiURL+"/api/v1/trips", *dispatcher, seed.Trips, "trip")

	log.Printf("done: %d pilots, %d trips seeded", pilotsOK, tripsOK)
}

func post(client *http.Client, url, dispatcher string, items []json.RawMessage, kind string) int {
	created := 0
	for _, item := range items {
		req, err := http.NewRequest("POST", url, bytes.NewReader(item))
		if err != nil {
			log.Printf("skip %s %s: %v", kind, summarize(item, "id"), err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Dispatcher-ID", dispatcher)

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("skip %s %s: %v", kind, summarize(item, "id"), err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			created++
		} else {
			log.Printf("skip %s %s: status %d", kind, summarize(item, "id"), resp.StatusCode)
		}
	}
	return created
}

func summarize(raw json.RawMessage, key string) string {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return "?"
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	if v, ok := m["short_code"].(string); ok {
		return v
	}
	return "?"
}
