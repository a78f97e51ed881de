// Minimal end-to-end check against a running storyvote API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	baseURL   = getenv("API_URL", "http://localhost:3001/api/v1")
	redisURL  = os.Getenv("REDIS_URL")
	cronToken = os.Getenv("CRON_AUTH_TOKEN")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// randomAddress returns a throwaway participant address.
func randomAddress() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func main() {
	checkHealth()

	session := currentSession()
	author := randomAddress()
	proposalID := submitProposal(session.Type, author)

	voters := []string{randomAddress(), randomAddress()}
	for _, v := range voters {
		castVote(proposalID, v)
	}
	checkVote(voters[0], proposalID)
	checkStats(author, len(voters))

	if redisURL != "" {
		checkStream()
	}
	trigger()

	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- sessions

type session struct {
	ID     uint64 `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

func checkHealth() {
	var resp struct{ Status string }
	doJSON("GET", "/health", nil, &resp, http.StatusOK)
	if resp.Status != "ok" {
		log.Fatalf("health: status %q", resp.Status)
	}
}

func currentSession() session {
	var s session
	doJSON("GET", "/voting-sessions/current", nil, &s, http.StatusOK)
	if s.ID == 0 || s.Status != "active" {
		log.Fatalf("current session: unexpected %+v", s)
	}
	return s
}

// ----------------------------- proposals

func submitProposal(kind, author string) uint64 {
	var resp struct{ ID uint64 }
	doJSON("POST", "/proposals", map[string]any{
		"content": "integration-test " + uuid.NewString(),
		"author":  author,
		"type":    kind,
	}, &resp, http.StatusCreated)
	return resp.ID
}

func castVote(proposalID uint64, voter string) {
	doJSON("POST", "/proposals/vote", map[string]any{
		"proposal_id": proposalID,
		"voter":       voter,
	}, nil, http.StatusOK)
	doJSON("POST", "/proposals/vote", map[string]any{
		"proposal_id": proposalID,
		"voter":       voter,
	}, nil, http.StatusConflict)
}

func checkVote(voter string, want uint64) {
	var resp struct {
		ProposalID uint64 `json:"proposal_id"`
	}
	doJSON("GET", "/proposals/vote/check/"+voter, nil, &resp, http.StatusOK)
	if resp.ProposalID != want {
		log.Fatalf("vote check: got %d want %d", resp.ProposalID, want)
	}
}

func checkStats(author string, votes int) {
	var resp struct {
		Submitted int `json:"proposals_submitted"`
		Received  int `json:"votes_received"`
	}
	doJSON("GET", "/proposals/stats/"+author, nil, &resp, http.StatusOK)
	if resp.Submitted != 1 || resp.Received != votes {
		log.Fatalf("stats: unexpected %+v", resp)
	}
}

// ----------------------------- events and trigger

func checkStream() {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("redis url: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	msgs, err := rdb.XRevRangeN(context.Background(), "storyvote.events", "+", "-", 5).Result()
	if err != nil {
		log.Fatalf("redis xrevrange: %v", err)
	}
	for _, m := range msgs {
		if m.Values["kind"] == "vote.cast" {
			return
		}
	}
	log.Fatal("stream: no vote.cast event")
}

func trigger() {
	doReq("POST", "/trigger/check-voting", cronToken, nil, nil, http.StatusOK)
}

// ----------------------------- helpers

func doJSON(method, path string, body, out any, want int) {
	doReq(method, path, "", body, out, want)
}

func doReq(method, path, token string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
