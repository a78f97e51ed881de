package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/stake-plus/storyvote/src/webclient"
)

// Reader fetches the story book object over Sui JSON-RPC.
type Reader struct {
	http        *http.Client
	rpcURL      string
	storyBookID string
	attempts    int
	retryDelay  time.Duration
	nextID      atomic.Uint64
}

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	RPCURL      string
	StoryBookID string
	HTTPClient  *http.Client
	Attempts    int
	RetryDelay  time.Duration
}

func NewReader(cfg ReaderConfig) (*Reader, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, fmt.Errorf("ledger: rpc url is required")
	}
	if strings.TrimSpace(cfg.StoryBookID) == "" {
		return nil, fmt.Errorf("ledger: story book id is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = webclient.NewDefault(30 * time.Second)
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Reader{
		http:        client,
		rpcURL:      cfg.RPCURL,
		storyBookID: cfg.StoryBookID,
		attempts:    attempts,
		retryDelay:  delay,
	}, nil
}

// CurrentBook returns the book at current_book_index, or nil when the story
// book holds no books yet.
func (r *Reader) CurrentBook(ctx context.Context) (*Book, error) {
	fields, err := r.storyBook(ctx)
	if err != nil {
		return nil, err
	}
	if len(fields.Books) == 0 {
		return nil, nil
	}
	current := uint64(fields.CurrentBookIndex)
	if current >= uint64(len(fields.Books)) {
		return nil, fmt.Errorf("ledger: current book index %d out of range (%d books)", current, len(fields.Books))
	}
	book, err := decodeBook(current, fields.Books[current])
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Books returns every book in the story book, oldest first.
func (r *Reader) Books(ctx context.Context) ([]Book, error) {
	fields, err := r.storyBook(ctx)
	if err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(fields.Books))
	for i, raw := range fields.Books {
		book, err := decodeBook(uint64(i), raw)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

func (r *Reader) storyBook(ctx context.Context) (*storyBookFields, error) {
	result, err := r.call(ctx, "sui_getObject", r.storyBookID, map[string]bool{"showContent": true})
	if err != nil {
		return nil, err
	}

	var obj objectResult
	if err := json.Unmarshal(result, &obj); err != nil {
		return nil, fmt.Errorf("ledger: decode object: %w", err)
	}
	if obj.Error != nil || obj.Data == nil || obj.Data.Content == nil {
		return nil, ErrObjectMissing
	}

	var fields storyBookFields
	if err := json.Unmarshal(unwrapFields(obj.Data.Content.Fields), &fields); err != nil {
		return nil, fmt.Errorf("ledger: decode story book: %w", err)
	}
	return &fields, nil
}

func (r *Reader) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcReq{
		Jsonrpc: "2.0",
		ID:      r.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	retry := webclient.Policy{Attempts: r.attempts, Delay: r.retryDelay, Label: "ledger " + method}
	status, body, err := retry.Do(ctx, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.rpcURL, bytes.NewReader(payload))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.http.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		return resp.StatusCode, b, err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: %s: %w", method, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("ledger: %s: status %d", method, status)
	}

	var rsp rpcResp
	if err := json.Unmarshal(body, &rsp); err != nil {
		return nil, fmt.Errorf("ledger: %s: decode response: %w", method, err)
	}
	if rsp.Error != nil {
		return nil, fmt.Errorf("ledger: %s: RPC %d: %s", method, rsp.Error.Code, rsp.Error.Message)
	}
	return rsp.Result, nil
}
