// Package campaign maintains the durable campaign ledger, the monthly
// sent counter, and the read-only projections the dashboard displays.
package campaign

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lumenworks/ideaengine/internal/ideas"
	"github.com/lumenworks/ideaengine/internal/store"
)

const (
	StatusGenerated = "generated"
	StatusSent      = "sent"

	campaignsKey = "daily-idea-engine-campaigns"
)

// Record is one row in the ledger: a batch of generated ideas for a
// calendar date, optionally emailed. Ideas are a snapshot, never a
// reference into in-flight generation state.
type Record struct {
	ID              string       `json:"id"`
	Date            string       `json:"date"`
	Ideas           []ideas.Idea `json:"ideas"`
	RecipientCount  int          `json:"recipientCount"`
	RecipientEmails string       `json:"recipientEmails"`
	SubjectLine     string       `json:"subjectLine"`
	Status          string       `json:"status"`
	SentAt          string       `json:"sentAt,omitempty"`
}

// Ledger is the ordered campaign history, newest first. It owns its
// records: callers only ever receive copies. Mutations persist the
// whole serialized sequence; persistence failures are swallowed so a
// lost write can never crash the flow that triggered it.
type Ledger struct {
	kv    store.KV
	newID func() string
	mu    sync.Mutex
	recs  []Record
}

func NewLedger(kv store.KV, newID func() string) *Ledger {
	l := &Ledger{kv: kv, newID: newID}
	l.recs = l.load()
	return l
}

// load never fails: absence or corruption of the stored value
// degrades to an empty ledger.
func (l *Ledger) load() []Record {
	raw, err := l.kv.Get(campaignsKey)
	if err != nil || raw == "" {
		if err != nil {
			log.Printf("[ledger] load warning: %v", err)
		}
		return []Record{}
	}
	var recs []Record
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		log.Printf("[ledger] corrupt store, starting empty: %v", err)
		return []Record{}
	}
	return recs
}

func (l *Ledger) persist() {
	data, err := json.Marshal(l.recs)
	if err != nil {
		log.Printf("[ledger] marshal warning: %v", err)
		return
	}
	if err := l.kv.Set(campaignsKey, string(data)); err != nil {
		log.Printf("[ledger] persist warning: %v", err)
	}
}

// Records returns a copy of the ledger, newest first.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.recs))
	copy(out, l.recs)
	return out
}

// Find returns the record with the given id, if present.
func (l *Ledger) Find(id string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.recs {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// Append inserts the record at the head of the sequence.
func (l *Ledger) Append(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append([]Record{rec}, l.recs...)
	l.persist()
}

// UpsertOnSend records a completed send for the given date. If a
// pending generated record exists for that date it is transitioned in
// place to sent, preserving its position; otherwise a brand-new sent
// record is appended from the in-flight idea set. Receipt-provided
// values win over local fallbacks only when the receipt actually
// supplied them.
func (l *Ledger) UpsertOnSend(date string, ideaSet []ideas.Idea, recipientEmails, subjectLine string, receipt *ideas.EmailReceipt, now time.Time) Record {
	recipientCount := CountRecipients(recipientEmails)
	sentAt := now.UTC().Format(time.RFC3339)
	if receipt != nil {
		if receipt.RecipientCount > 0 {
			recipientCount = receipt.RecipientCount
		}
		if receipt.SubjectLine != "" {
			subjectLine = receipt.SubjectLine
		}
		if receipt.SentAt != "" {
			sentAt = receipt.SentAt
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.recs {
		if l.recs[i].Date == date && l.recs[i].Status == StatusGenerated {
			l.recs[i].Status = StatusSent
			l.recs[i].RecipientCount = recipientCount
			l.recs[i].RecipientEmails = strings.TrimSpace(recipientEmails)
			l.recs[i].SubjectLine = subjectLine
			l.recs[i].SentAt = sentAt
			rec := l.recs[i]
			l.persist()
			return rec
		}
	}

	rec := Record{
		ID:              l.newID(),
		Date:            date,
		Ideas:           append([]ideas.Idea(nil), ideaSet...),
		RecipientCount:  recipientCount,
		RecipientEmails: strings.TrimSpace(recipientEmails),
		SubjectLine:     subjectLine,
		Status:          StatusSent,
		SentAt:          sentAt,
	}
	l.recs = append([]Record{rec}, l.recs...)
	l.persist()
	return rec
}

// CountRecipients counts the non-blank entries of a raw
// comma-separated recipient string.
func CountRecipients(raw string) int {
	count := 0
	for _, entry := range strings.Split(raw, ",") {
		if strings.TrimSpace(entry) != "" {
			count++
		}
	}
	return count
}
