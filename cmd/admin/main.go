package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Operator CLI for the settlement service. It drives the admin HTTP API, so
// it works against any deployed instance without database access.
type AdminCLI struct {
	baseURL string
	secret  string
	client  *http.Client
}

func main() {
	var (
		baseURL = flag.String("url", envOr("RUBHUB_ADMIN_URL", "http://localhost:8080"), "Settlement service base URL")
		secret  = flag.String("secret", os.Getenv("RUBHUB_AUTH_ADMIN_SECRET"), "Admin API secret")
		action  = flag.String("action", "", "Action to perform")
		id      = flag.String("id", "", "Payout or account ID")
		status  = flag.String("status", "FAILED", "Payout status filter for list-payouts")
		kind    = flag.String("kind", "PROVIDER", "Account kind filter for list-accounts")
		reason  = flag.String("reason", "", "Reason for reverse-payout")
		start   = flag.String("start", "", "Period start (YYYY-MM-DD) for run-settlement")
		end     = flag.String("end", "", "Period end (YYYY-MM-DD) for run-settlement")
	)
	flag.Parse()

	if *action == "" {
		fmt.Println("Usage: admin -action=<action> [options]")
		fmt.Println("Actions:")
		fmt.Println("  list-payouts    - List payout records by status")
		fmt.Println("  get-payout      - Show one payout record (-id)")
		fmt.Println("  retry-payout    - Retry a failed payout (-id)")
		fmt.Println("  reverse-payout  - Reverse a processed payout (-id, -reason)")
		fmt.Println("  cancel-payout   - Cancel an unfinished payout (-id)")
		fmt.Println("  payout-stats    - Show payout counts per status")
		fmt.Println("  list-accounts   - List ledger accounts by kind")
		fmt.Println("  get-account     - Show one account with balance (-id)")
		fmt.Println("  transactions    - List an account's transactions (-id)")
		fmt.Println("  run-settlement  - Trigger a settlement run (-start, -end)")
		fmt.Println("  recent-runs     - Show recent settlement run reports")
		os.Exit(1)
	}
	if *secret == "" {
		log.Fatal("admin secret required (set RUBHUB_AUTH_ADMIN_SECRET or -secret)")
	}

	cli := &AdminCLI{
		baseURL: *baseURL,
		secret:  *secret,
		client:  &http.Client{Timeout: 60 * time.Second},
	}

	switch *action {
	case "list-payouts":
		cli.get("/admin/payouts?status=" + *status)
	case "get-payout":
		cli.requireID(*id)
		cli.get("/admin/payouts/" + *id)
	case "retry-payout":
		cli.requireID(*id)
		cli.post("/admin/payouts/"+*id+"/retry", nil)
	case "reverse-payout":
		cli.requireID(*id)
		if *reason == "" {
			log.Fatal("-reason is required for reverse-payout")
		}
		cli.post("/admin/payouts/"+*id+"/reverse", map[string]string{"reason": *reason})
	case "cancel-payout":
		cli.requireID(*id)
		cli.post("/admin/payouts/"+*id+"/cancel", nil)
	case "payout-stats":
		cli.get("/admin/payouts/stats")
	case "list-accounts":
		cli.get("/admin/accounts?kind=" + *kind)
	case "get-account":
		cli.requireID(*id)
		cli.get("/admin/accounts/" + *id)
	case "transactions":
		cli.requireID(*id)
		cli.get("/admin/accounts/" + *id + "/transactions")
	case "run-settlement":
		if *start == "" || *end == "" {
			log.Fatal("-start and -end are required for run-settlement")
		}
		cli.post("/admin/settlement/run", map[string]string{
			"period_start": *start,
			"period_end":   *end,
		})
	case "recent-runs":
		cli.get("/admin/settlement/runs")
	default:
		fmt.Printf("Unknown action: %s\n", *action)
		os.Exit(1)
	}
}

func (cli *AdminCLI) requireID(id string) {
	if id == "" {
		log.Fatal("-id is required for this action")
	}
}

func (cli *AdminCLI) get(path string) {
	cli.do(http.MethodGet, path, nil)
}

func (cli *AdminCLI) post(path string, body interface{}) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			log.Fatal("failed to encode request body:", err)
		}
		payload = bytes.NewReader(raw)
	}
	cli.do(http.MethodPost, path, payload)
}

func (cli *AdminCLI) do(method, path string, body io.Reader) {
	req, err := http.NewRequest(method, cli.baseURL+path, body)
	if err != nil {
		log.Fatal("failed to build request:", err)
	}
	req.Header.Set("X-Admin-Secret", cli.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := cli.client.Do(req)
	if err != nil {
		log.Fatal("request failed:", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal("failed to read response:", err)
	}

	// Pretty-print JSON responses, pass anything else through
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
	} else {
		fmt.Println(pretty.String())
	}

	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
