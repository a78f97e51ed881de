package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/stake-plus/storyvote/src/config"
	"github.com/stake-plus/storyvote/src/ledger"
)

var (
	rpcFlag     = flag.String("rpc", "", "Sui JSON-RPC endpoint (default SUI_RPC_URL)")
	objectFlag  = flag.String("storybook", "", "StoryBook object id (default STORYBOOK_ID)")
	allFlag     = flag.Bool("all", false, "Print every book instead of the current one")
	jsonFlag    = flag.Bool("json", false, "Print raw JSON")
	timeoutFlag = flag.Duration("timeout", 30*time.Second, "Request timeout")
	maxLenFlag  = flag.Int("max-chars", 120, "Maximum characters of each paragraph to print (0=unlimited)")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	cfg := config.LoadLedgerConfig()
	reader, err := ledger.NewReader(ledger.ReaderConfig{
		RPCURL:      pickFirst(*rpcFlag, cfg.RPCURL),
		StoryBookID: pickFirst(*objectFlag, cfg.StoryBookID),
	})
	if err != nil {
		log.Fatalf("reader: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	var books []ledger.Book
	if *allFlag {
		books, err = reader.Books(ctx)
	} else {
		var book *ledger.Book
		book, err = reader.CurrentBook(ctx)
		if book != nil {
			books = append(books, *book)
		}
	}
	if err != nil {
		log.Fatalf("read: %v", err)
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(books); err != nil {
			log.Fatalf("encode: %v", err)
		}
		return
	}

	if len(books) == 0 {
		fmt.Println("story book is empty")
		return
	}
	for _, b := range books {
		printBook(b)
	}
}

func printBook(b ledger.Book) {
	status := "ongoing"
	if b.Archived() {
		status = "archived"
	}
	fmt.Printf("#%d %q by %s (%s, %d paragraphs)\n", b.Index, b.Title, b.Author, status, b.ParagraphCount())
	for i, p := range b.Paragraphs {
		fmt.Printf("  %2d. [%d votes] %s\n", i+1, p.Votes, truncate(p.Content, *maxLenFlag))
	}
}

func truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func pickFirst(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
