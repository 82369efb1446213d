// Package engine owns the two user-triggered flows of the dashboard:
// generating a batch of ideas and sending them as an email campaign.
// All session state (the in-flight batch, subject line, status) lives
// here explicitly and is passed by value to the ledger and counter,
// which stay independently testable.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lumenworks/ideaengine/internal/agent"
	"github.com/lumenworks/ideaengine/internal/bus"
	"github.com/lumenworks/ideaengine/internal/campaign"
	"github.com/lumenworks/ideaengine/internal/config"
	"github.com/lumenworks/ideaengine/internal/ideas"
)

const (
	StatusPending   = "pending"
	StatusGenerated = "generated"
	StatusSent      = "sent"
)

var (
	ErrBusy             = errors.New("another request is already in flight")
	ErrNoRecipients     = errors.New("enter at least one recipient email address")
	ErrNoIdeas          = errors.New("no ideas to send; generate ideas first")
	ErrUnexpectedFormat = errors.New("the agent returned an unexpected format")
	ErrNotFound         = errors.New("campaign not found")
)

const generateInstruction = "Generate 5 fresh, high-impact AI agent ideas for today. " +
	"Include creative tools combinations, realistic hours-saved estimates, and compelling benefit statements. " +
	"Focus on diverse categories across business functions."

const defaultSubjectLine = "Daily AI Agent Ideas"

// Notifier receives a short summary after a campaign send completes.
type Notifier interface {
	CampaignSent(summary string)
}

type Engine struct {
	cfg      *config.Config
	invoker  agent.Invoker
	ledger   *campaign.Ledger
	counter  *campaign.Counter
	notices  *bus.NoticeBus
	notifier Notifier

	now   func() time.Time
	newID func() string

	mu          sync.Mutex
	busy        bool
	ideaSet     []ideas.Idea
	subjectLine string
	status      string
	sessionID   string
}

// Options carry injectable dependencies for tests.
type Options struct {
	Now      func() time.Time
	NewID    func() string
	Notices  *bus.NoticeBus
	Notifier Notifier
}

func New(cfg *config.Config, invoker agent.Invoker, ledger *campaign.Ledger, counter *campaign.Counter) *Engine {
	return NewWithOptions(cfg, invoker, ledger, counter, Options{})
}

func NewWithOptions(cfg *config.Config, invoker agent.Invoker, ledger *campaign.Ledger, counter *campaign.Counter, opts Options) *Engine {
	e := &Engine{
		cfg:      cfg,
		invoker:  invoker,
		ledger:   ledger,
		counter:  counter,
		notices:  opts.Notices,
		notifier: opts.Notifier,
		now:      opts.Now,
		newID:    opts.NewID,
		status:   StatusPending,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = func() string { return strings.ToLower(ulid.Make().String()) }
	}
	if e.notices == nil {
		e.notices = bus.NewNoticeBus(0)
	}

	// Month rollover is checked once per session start.
	e.counter.Reconcile(e.nowMonth())
	return e
}

func (e *Engine) Notices() *bus.NoticeBus { return e.notices }

func (e *Engine) today() string {
	return e.now().UTC().Format("2006-01-02")
}

func (e *Engine) nowMonth() string {
	return e.now().UTC().Format("2006-01")
}

func (e *Engine) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrBusy
	}
	e.busy = true
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// Generate runs one idea-generation cycle: invoke the manager agent,
// normalize its reply, and on success replace the in-flight batch and
// append a generated record for today. A failed cycle leaves all
// prior state untouched.
func (e *Engine) Generate(ctx context.Context) (*ideas.Batch, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	env, err := e.invoker.Invoke(ctx, generateInstruction, e.cfg.Agents.ManagerID)
	if err != nil {
		e.notices.Error("Failed to generate ideas. Please check your connection and try again.")
		return nil, fmt.Errorf("generate: %w", err)
	}
	if !env.Success {
		e.notices.Error("Failed to generate ideas. Please check your connection and try again.")
		return nil, fmt.Errorf("generate: agent failed: %s", env.Error)
	}

	batch := ideas.NormalizeBatch(env, e.newID, e.now)
	if batch == nil || len(batch.Ideas) == 0 {
		e.notices.Error("Could not parse ideas from the agent response. The agent may have returned an unexpected format. Please try again.")
		return nil, fmt.Errorf("generate: %w", ErrUnexpectedFormat)
	}

	e.mu.Lock()
	e.ideaSet = append([]ideas.Idea(nil), batch.Ideas...)
	e.subjectLine = batch.SubjectLine
	e.status = StatusGenerated
	if env.SessionID != "" {
		e.sessionID = env.SessionID
	}
	e.mu.Unlock()

	e.ledger.Append(campaign.Record{
		ID:          e.newID(),
		Date:        e.today(),
		Ideas:       append([]ideas.Idea(nil), batch.Ideas...),
		SubjectLine: batch.SubjectLine,
		Status:      campaign.StatusGenerated,
	})

	log.Printf("[engine] generated %d ideas", len(batch.Ideas))
	e.notices.Success(fmt.Sprintf("Generated %d fresh ideas! Review and edit them below, then send as a campaign.", len(batch.Ideas)))
	return batch, nil
}

// SendResult reports one completed send cycle.
type SendResult struct {
	Record         campaign.Record
	Receipt        *ideas.EmailReceipt
	RecipientCount int
}

// Send runs one campaign-send cycle. Recipients and the in-flight
// idea set are validated before any network call. On agent success the
// counter and ledger are updated even when the receipt itself cannot
// be parsed; local fallbacks stand in for the missing receipt fields.
// On agent failure nothing is mutated.
func (e *Engine) Send(ctx context.Context, recipientEmails, ccEmails string) (*SendResult, error) {
	if strings.TrimSpace(recipientEmails) == "" {
		e.notices.Error("Please enter at least one recipient email address.")
		return nil, ErrNoRecipients
	}

	e.mu.Lock()
	ideaSet := append([]ideas.Idea(nil), e.ideaSet...)
	subjectLine := e.subjectLine
	e.mu.Unlock()

	if len(ideaSet) == 0 {
		e.notices.Error("No ideas to send. Generate ideas first.")
		return nil, ErrNoIdeas
	}

	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	message := buildEmailMessage(ideaSet, subjectLine, recipientEmails, ccEmails)

	env, err := e.invoker.Invoke(ctx, message, e.cfg.Agents.EmailID)
	if err != nil {
		e.notices.Error("Failed to send campaign. Please try again.")
		return nil, fmt.Errorf("send: %w", err)
	}
	if !env.Success {
		e.notices.Error("Failed to send campaign. Please try again.")
		return nil, fmt.Errorf("send: agent failed: %s", env.Error)
	}

	receipt := ideas.NormalizeReceipt(env, e.now)

	e.mu.Lock()
	e.status = StatusSent
	if env.SessionID != "" {
		e.sessionID = env.SessionID
	}
	e.mu.Unlock()

	// Counter first, then ledger; the counter update is never skipped
	// even when the receipt did not parse.
	e.counter.Increment(len(ideaSet))
	rec := e.ledger.UpsertOnSend(e.today(), ideaSet, recipientEmails, subjectLine, receipt, e.now())

	localCount := campaign.CountRecipients(recipientEmails)
	result := &SendResult{Record: rec, Receipt: receipt, RecipientCount: rec.RecipientCount}

	if receipt != nil {
		text := "Campaign sent successfully!"
		if receipt.DeliveryStatus != "" {
			text += " Status: " + receipt.DeliveryStatus
		}
		text += fmt.Sprintf(" (%d recipients)", rec.RecipientCount)
		e.notices.Success(text)
	} else {
		e.notices.Success(fmt.Sprintf("Campaign submitted! The email agent has processed your request to %d recipient(s).", localCount))
	}

	if e.notifier != nil {
		e.notifier.CampaignSent(fmt.Sprintf("Campaign %q sent to %d recipient(s), %d ideas.", rec.SubjectLine, rec.RecipientCount, len(rec.Ideas)))
	}

	log.Printf("[engine] campaign sent: %d ideas to %d recipients", len(ideaSet), rec.RecipientCount)
	return result, nil
}

func buildEmailMessage(ideaSet []ideas.Idea, subjectLine, recipientEmails, ccEmails string) string {
	subject := subjectLine
	if subject == "" {
		subject = defaultSubjectLine
	}

	var sb strings.Builder
	sb.WriteString("Send the following agent ideas as a nurture email campaign.\n\n")
	sb.WriteString("Recipients: " + strings.TrimSpace(recipientEmails) + "\n")
	sb.WriteString("Subject: " + subject + "\n")
	if cc := strings.TrimSpace(ccEmails); cc != "" {
		sb.WriteString("CC: " + cc + "\n")
	}
	sb.WriteString("\nContent to send:\n")

	blocks := make([]string, 0, len(ideaSet))
	for i, idea := range ideaSet {
		blocks = append(blocks, fmt.Sprintf(
			"\nIdea %d: %s\nCategory: %s\nPrompt: %s\nTools: %s\nHours Saved: %gh/week\nBenefit: %s\n",
			i+1, idea.Title, idea.Category, idea.PromptSuggestion,
			strings.Join(idea.Tools, ", "), idea.HoursSavedPerWeek, idea.BenefitStatement,
		))
	}
	sb.WriteString(strings.Join(blocks, "\n---\n"))

	sb.WriteString("\n\nFormat this as a professional HTML email with clear sections for each idea. ")
	sb.WriteString("Include a call-to-action to try building these agents.")
	return sb.String()
}
