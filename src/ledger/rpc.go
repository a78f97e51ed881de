package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ---------- tiny JSON-RPC helpers ----------

type rpcReq struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResp struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ---------- Move object decoding ----------

// Sui nests struct values as {"type": ..., "fields": {...}} but some nodes
// return them flat, so both shapes are accepted.
func unwrapFields(raw json.RawMessage) json.RawMessage {
	var wrapped struct {
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Fields) > 0 && string(wrapped.Fields) != "null" {
		return wrapped.Fields
	}
	return raw
}

// moveNumber decodes u64 values that arrive either as JSON strings or numbers.
type moveNumber uint64

func (n *moveNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("decode move number %q: %w", s, err)
	}
	*n = moveNumber(v)
	return nil
}

type objectResult struct {
	Data *struct {
		ObjectID string `json:"objectId"`
		Content  *struct {
			DataType string          `json:"dataType"`
			Type     string          `json:"type"`
			Fields   json.RawMessage `json:"fields"`
		} `json:"content"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type storyBookFields struct {
	CurrentBookIndex moveNumber        `json:"current_book_index"`
	Books            []json.RawMessage `json:"books"`
}

type bookFields struct {
	Index      *moveNumber     `json:"index"`
	Title      string          `json:"title"`
	Author     string          `json:"author"`
	Status     moveNumber      `json:"status"`
	Paragraphs json.RawMessage `json:"paragraphs"`
}

type paragraphFields struct {
	Content string     `json:"content"`
	Author  string     `json:"author"`
	Votes   moveNumber `json:"votes"`
}

func decodeBook(position uint64, raw json.RawMessage) (Book, error) {
	var f bookFields
	if err := json.Unmarshal(unwrapFields(raw), &f); err != nil {
		return Book{}, fmt.Errorf("decode book %d: %w", position, err)
	}
	book := Book{
		Index:      position,
		Title:      f.Title,
		Author:     f.Author,
		Status:     BookStatus(f.Status),
		Paragraphs: []Paragraph{},
	}
	if f.Index != nil {
		book.BookIndex = uint64(*f.Index)
	}

	var items []json.RawMessage
	if len(f.Paragraphs) > 0 {
		if err := json.Unmarshal(unwrapFields(f.Paragraphs), &items); err != nil {
			return Book{}, fmt.Errorf("decode book %d paragraphs: %w", position, err)
		}
	}
	for i, item := range items {
		var p paragraphFields
		if err := json.Unmarshal(unwrapFields(item), &p); err != nil {
			return Book{}, fmt.Errorf("decode book %d paragraph %d: %w", position, i, err)
		}
		book.Paragraphs = append(book.Paragraphs, Paragraph{
			Content: p.Content,
			Author:  p.Author,
			Votes:   uint64(p.Votes),
		})
	}
	return book, nil
}
