package ledger

import "errors"

// BookStatus mirrors the on-chain book status field.
type BookStatus uint8

const (
	BookOngoing  BookStatus = 0
	BookArchived BookStatus = 1
)

// Operation names a write the signing gateway knows how to build.
type Operation string

const (
	OpStartNewBook           Operation = "start_new_book"
	OpAddParagraph           Operation = "add_paragraph"
	OpAddParagraphAndArchive Operation = "add_paragraph_and_archive"
)

var (
	ErrNoDigest      = errors.New("ledger: transaction returned no digest")
	ErrObjectMissing = errors.New("ledger: story book object not found")
)

// Paragraph is one committed paragraph of a book.
type Paragraph struct {
	Content string `json:"content"`
	Author  string `json:"author"`
	Votes   uint64 `json:"votes"`
}

// Book is a decoded book from the story book object.
type Book struct {
	Index      uint64      `json:"index"`
	BookIndex  uint64      `json:"bookIndex"`
	Title      string      `json:"title"`
	Author     string      `json:"author"`
	Status     BookStatus  `json:"status"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Archived reports whether the book accepts no more paragraphs.
func (b *Book) Archived() bool {
	return b != nil && b.Status == BookArchived
}

// ParagraphCount is nil-safe.
func (b *Book) ParagraphCount() int {
	if b == nil {
		return 0
	}
	return len(b.Paragraphs)
}

// WriteRequest carries the winner of a round to the gateway.
type WriteRequest struct {
	Content        string
	Author         string
	IdempotencyKey string
}

// TxResult is the outcome of a successful write.
type TxResult struct {
	Digest   string `json:"digest"`
	Archived bool   `json:"archived"`
}
