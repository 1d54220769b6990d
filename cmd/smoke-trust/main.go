// smoke-trust runs the core mint/vote/trade flow against a live API and
// verifies the dispute transition end to end.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("TOKENWATCH_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}

	tok := postJSON(client, base+"/api/simulate/mint", map[string]any{
		"name":   "Smoke Test Token",
		"symbol": "SMK",
	})
	tokenID := tok["token"].(map[string]any)["tokenId"].(string)
	log.Printf("minted %s", tokenID)

	for _, vote := range []string{"disagree", "disagree", "agree"} {
		postJSON(client, base+"/api/vote", map[string]any{
			"tokenId": tokenID,
			"vote":    vote,
		})
	}

	listing := getJSON(client, base+"/api/tokens")
	var current map[string]any
	for _, item := range listing["items"].([]any) {
		row := item.(map[string]any)
		if row["tokenId"] == tokenID {
			current = row
		}
	}
	if current == nil {
		log.Fatalf("minted token missing from listing")
	}
	if current["isDisputed"] != true {
		log.Fatalf("dispute transition failed: %v", current)
	}
	if current["trust_score"].(float64) != 40 {
		log.Fatalf("disputed score not capped: %v", current["trust_score"])
	}
	log.Printf("dispute transition ok (score %v)", current["trust_score"])

	trade := postJSON(client, base+"/api/trade", map[string]any{
		"tokenId": tokenID,
		"side":    "sell",
		"amount":  50,
	})
	if trade["newTrustScore"].(float64) != 39 {
		log.Fatalf("sell did not decrement score: %v", trade["newTrustScore"])
	}
	log.Printf("trade ok (score %v)", trade["newTrustScore"])

	audits := getJSON(client, base+"/api/audits?tokenId="+tokenID)
	// mint + 3 votes + trade
	if count := audits["count"].(float64); count != 5 {
		log.Fatalf("expected 5 audit entries, got %v", count)
	}
	log.Printf("audit trail ok")

	fmt.Println("smoke-trust: OK")
}

func postJSON(client *http.Client, url string, body map[string]any) map[string]any {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Fatalf("POST %s: status %d", url, resp.StatusCode)
	}
	return decodeBody(resp)
}

func getJSON(client *http.Client, url string) map[string]any {
	resp, err := client.Get(url)
	if err != nil {
		log.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	return decodeBody(resp)
}

func decodeBody(resp *http.Response) map[string]any {
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("decode %s: %v", resp.Request.URL, err)
	}
	return out
}
