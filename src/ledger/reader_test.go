package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const storyBookObject = `{
  "jsonrpc": "2.0",
  "id": 1,
  "result": {
    "data": {
      "objectId": "0xbook",
      "content": {
        "dataType": "moveObject",
        "type": "0x1::story::StoryBook",
        "fields": {
          "current_book_index": "1",
          "books": [
            {"type": "0x1::story::Book", "fields": {"index": "0", "title": "first", "author": "0xa", "status": 1, "paragraphs": []}},
            {"type": "0x1::story::Book", "fields": {"index": "1", "title": "second", "author": "0xb", "status": 0,
              "paragraphs": [
                {"type": "0x1::story::Paragraph", "fields": {"content": "one", "author": "0xc", "votes": "3"}},
                {"content": "two", "author": "0xd", "votes": 5}
              ]}}
          ]
        }
      }
    }
  }
}`

func rpcServer(t *testing.T, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		raw, _ := io.ReadAll(r.Body)
		var req rpcReq
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "sui_getObject" {
			t.Errorf("method = %q", req.Method)
		}
		if len(req.Params) != 2 || req.Params[0] != "0xbook" {
			t.Errorf("params = %v", req.Params)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestReader(t *testing.T, url string) *Reader {
	t.Helper()
	r, err := NewReader(ReaderConfig{RPCURL: url, StoryBookID: "0xbook", RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return r
}

func TestCurrentBookDecodesNestedFields(t *testing.T) {
	srv := rpcServer(t, storyBookObject, nil)
	book, err := newTestReader(t, srv.URL).CurrentBook(context.Background())
	if err != nil {
		t.Fatalf("CurrentBook: %v", err)
	}
	if book == nil || book.Title != "second" || book.Index != 1 || book.BookIndex != 1 {
		t.Fatalf("unexpected book %+v", book)
	}
	if book.Archived() {
		t.Fatalf("book should be ongoing")
	}
	if book.ParagraphCount() != 2 || book.Paragraphs[1].Votes != 5 || book.Paragraphs[0].Author != "0xc" {
		t.Fatalf("unexpected paragraphs %+v", book.Paragraphs)
	}
}

func TestBooksReturnsAll(t *testing.T) {
	srv := rpcServer(t, storyBookObject, nil)
	books, err := newTestReader(t, srv.URL).Books(context.Background())
	if err != nil {
		t.Fatalf("Books: %v", err)
	}
	if len(books) != 2 || !books[0].Archived() || books[0].Title != "first" {
		t.Fatalf("unexpected books %+v", books)
	}
}

func TestCurrentBookEmptyStoryBook(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"result":{"data":{"content":{"fields":{"current_book_index":"0","books":[]}}}}}`
	srv := rpcServer(t, body, nil)
	book, err := newTestReader(t, srv.URL).CurrentBook(context.Background())
	if err != nil {
		t.Fatalf("CurrentBook: %v", err)
	}
	if book != nil {
		t.Fatalf("want nil book, got %+v", book)
	}
	if book.ParagraphCount() != 0 || book.Archived() {
		t.Fatalf("nil book helpers misbehave")
	}
}

func TestCurrentBookMissingObject(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"result":{"error":{"code":"notExists"}}}`
	srv := rpcServer(t, body, nil)
	_, err := newTestReader(t, srv.URL).CurrentBook(context.Background())
	if err != ErrObjectMissing {
		t.Fatalf("err = %v, want ErrObjectMissing", err)
	}
}

func TestReaderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, storyBookObject)
	}))
	defer srv.Close()

	book, err := newTestReader(t, srv.URL).CurrentBook(context.Background())
	if err != nil {
		t.Fatalf("CurrentBook: %v", err)
	}
	if book.Title != "second" {
		t.Fatalf("title = %q", book.Title)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestReaderSurfacesRPCError(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`
	srv := rpcServer(t, body, nil)
	_, err := newTestReader(t, srv.URL).CurrentBook(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid params") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewReaderValidates(t *testing.T) {
	if _, err := NewReader(ReaderConfig{StoryBookID: "0xbook"}); err == nil {
		t.Fatalf("missing url accepted")
	}
	if _, err := NewReader(ReaderConfig{RPCURL: "http://x"}); err == nil {
		t.Fatalf("missing object id accepted")
	}
}
