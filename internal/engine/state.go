package engine

import (
	"fmt"
	"strings"

	"github.com/lumenworks/ideaengine/internal/campaign"
	"github.com/lumenworks/ideaengine/internal/ideas"
)

// View is the effective display state of the dashboard: the one place
// where sample-data fallbacks are applied, so the display layer never
// re-derives business rules.
type View struct {
	Ideas       []ideas.Idea `json:"ideas"`
	SubjectLine string       `json:"subjectLine"`
	Status      string       `json:"status"`
	MonthlySent int          `json:"monthlySent"`
	Month       string       `json:"month"`
	Today       string       `json:"today"`
	SessionID   string       `json:"sessionId,omitempty"`
	Busy        bool         `json:"busy"`
}

// sample-mode padding for the monthly counter, matching the demo data
const sampleSentPadding = 23

func (e *Engine) View(showSample bool) View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		Ideas:       append([]ideas.Idea(nil), e.ideaSet...),
		SubjectLine: e.subjectLine,
		Status:      e.status,
		MonthlySent: e.counter.Count(),
		Month:       e.counter.Month(),
		Today:       e.today(),
		SessionID:   e.sessionID,
		Busy:        e.busy,
	}
	if showSample {
		if len(v.Ideas) == 0 {
			v.Ideas = append([]ideas.Idea(nil), ideas.SampleIdeas...)
		}
		if v.SubjectLine == "" {
			v.SubjectLine = ideas.SampleSubjectLine
		}
		if v.Status == StatusPending {
			v.Status = StatusGenerated
		}
		v.MonthlySent += sampleSentPadding
	}
	return v
}

// History returns the filtered campaign projection, newest first.
// With showSample set, the demo campaigns are prepended before
// filtering, the way the dashboard renders them.
func (e *Engine) History(searchTerm, categoryFilter string, showSample bool) []campaign.Record {
	records := e.ledger.Records()
	if showSample {
		records = append(append([]campaign.Record(nil), campaign.SampleCampaigns...), records...)
	}
	return campaign.Filter(records, searchTerm, categoryFilter)
}

// HistoryCategories lists the categories available for filtering.
func (e *Engine) HistoryCategories(showSample bool) []string {
	records := e.ledger.Records()
	if showSample {
		records = append(append([]campaign.Record(nil), campaign.SampleCampaigns...), records...)
	}
	return campaign.Categories(records)
}

// Find looks up a single campaign record by id.
func (e *Engine) Find(recordID string) (campaign.Record, error) {
	rec, ok := e.ledger.Find(recordID)
	if !ok {
		return campaign.Record{}, fmt.Errorf("campaign %s: %w", recordID, ErrNotFound)
	}
	return rec, nil
}

// Resend loads a historical campaign back into the in-flight state so
// it can be edited and sent again. Ideas get fresh local ids. Returns
// the loaded record so the caller can prefill recipients.
func (e *Engine) Resend(recordID string) (campaign.Record, error) {
	rec, ok := e.ledger.Find(recordID)
	if !ok {
		return campaign.Record{}, fmt.Errorf("resend %s: %w", recordID, ErrNotFound)
	}

	e.mu.Lock()
	e.ideaSet = make([]ideas.Idea, len(rec.Ideas))
	for i, idea := range rec.Ideas {
		idea.ID = e.newID()
		e.ideaSet[i] = idea
	}
	e.subjectLine = rec.SubjectLine
	e.status = StatusGenerated
	e.mu.Unlock()

	e.notices.Success("Campaign loaded for resending. Update recipients and send again.")
	return rec, nil
}

// IdeaPatch carries the editable fields of an in-flight idea; nil
// pointers leave the field unchanged.
type IdeaPatch struct {
	Title             *string   `json:"title,omitempty"`
	PromptSuggestion  *string   `json:"promptSuggestion,omitempty"`
	Tools             *[]string `json:"tools,omitempty"`
	HoursSavedPerWeek *float64  `json:"hoursSavedPerWeek,omitempty"`
	Category          *string   `json:"category,omitempty"`
	BenefitStatement  *string   `json:"benefitStatement,omitempty"`
}

// EditIdea applies a patch to one in-flight idea.
func (e *Engine) EditIdea(ideaID string, patch IdeaPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.ideaSet {
		if e.ideaSet[i].ID != ideaID {
			continue
		}
		if patch.Title != nil {
			e.ideaSet[i].Title = *patch.Title
		}
		if patch.PromptSuggestion != nil {
			e.ideaSet[i].PromptSuggestion = *patch.PromptSuggestion
		}
		if patch.Tools != nil {
			e.ideaSet[i].Tools = append([]string(nil), (*patch.Tools)...)
		}
		if patch.HoursSavedPerWeek != nil {
			hours := *patch.HoursSavedPerWeek
			if hours < 0 {
				hours = 0
			}
			e.ideaSet[i].HoursSavedPerWeek = hours
		}
		if patch.Category != nil {
			e.ideaSet[i].Category = *patch.Category
		}
		if patch.BenefitStatement != nil {
			e.ideaSet[i].BenefitStatement = *patch.BenefitStatement
		}
		return nil
	}
	return fmt.Errorf("edit idea %s: %w", ideaID, ErrNotFound)
}

// RemoveIdea drops one idea from the in-flight set.
func (e *Engine) RemoveIdea(ideaID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.ideaSet {
		if e.ideaSet[i].ID == ideaID {
			e.ideaSet = append(e.ideaSet[:i], e.ideaSet[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove idea %s: %w", ideaID, ErrNotFound)
}

// RenderText renders a campaign as plain text, for copying out of the
// dashboard.
func RenderText(rec campaign.Record) string {
	blocks := make([]string, 0, len(rec.Ideas))
	for i, idea := range rec.Ideas {
		blocks = append(blocks, fmt.Sprintf(
			"Idea %d: %s\nCategory: %s\nPrompt: %s\nTools: %s\nHours Saved: %gh/week\nBenefit: %s",
			i+1, idea.Title, idea.Category, idea.PromptSuggestion,
			strings.Join(idea.Tools, ", "), idea.HoursSavedPerWeek, idea.BenefitStatement,
		))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}
