package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stake-plus/storyvote/src/webclient"
)

// Client submits story writes to the signing gateway. Each write is a single
// attempt: a failed write is reported, never silently retried.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// ClientConfig configures a Client.
type ClientConfig struct {
	GatewayURL string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.GatewayURL), "/")
	if base == "" {
		return nil, fmt.Errorf("ledger: gateway url is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = webclient.NewDefault(cfg.Timeout)
	}
	return &Client{http: client, baseURL: base, apiKey: cfg.APIKey}, nil
}

// StartNewBook opens a new book titled with the winning proposal.
func (c *Client) StartNewBook(ctx context.Context, req WriteRequest) (*TxResult, error) {
	return c.submit(ctx, OpStartNewBook, req)
}

// AddParagraph appends the winning paragraph to the current book.
func (c *Client) AddParagraph(ctx context.Context, req WriteRequest) (*TxResult, error) {
	return c.submit(ctx, OpAddParagraph, req)
}

// AddParagraphAndArchive appends the final paragraph and archives the book in
// one transaction.
func (c *Client) AddParagraphAndArchive(ctx context.Context, req WriteRequest) (*TxResult, error) {
	res, err := c.submit(ctx, OpAddParagraphAndArchive, req)
	if err != nil {
		return nil, err
	}
	res.Archived = true
	return res, nil
}

type gatewayRequest struct {
	Operation Operation `json:"operation"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
}

type gatewayResponse struct {
	Digest   string `json:"digest"`
	Status   string `json:"status"`
	Archived bool   `json:"archived"`
	Error    string `json:"error"`
}

func (c *Client) submit(ctx context.Context, op Operation, req WriteRequest) (*TxResult, error) {
	payload, err := json.Marshal(gatewayRequest{Operation: op, Content: req.Content, Author: req.Author})
	if err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key == "" {
		key = IdempotencyKey(string(op), req.Author, req.Content)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", key)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: read response: %w", op, err)
	}

	var out gatewayResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("gateway: %s: status %d: %s", op, resp.StatusCode, msg)
	}
	if out.Status != "" && !strings.EqualFold(out.Status, "success") {
		return nil, fmt.Errorf("gateway: %s: transaction %s %s: %s", op, out.Digest, out.Status, out.Error)
	}
	if out.Digest == "" {
		return nil, ErrNoDigest
	}
	return &TxResult{Digest: out.Digest, Archived: out.Archived}, nil
}
