package ideas

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/lumenworks/ideaengine/internal/agent"
)

var fixedNow = func() time.Time {
	return time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
}

func seqIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func batchPayload() map[string]any {
	return map[string]any{
		"ideas": []any{
			map[string]any{
				"title":                "Inbox Triage Agent",
				"prompt_suggestion":    "Build an agent that labels and drafts replies for routine email.",
				"tools":                []any{"Gmail", "Slack"},
				"hours_saved_per_week": 6.0,
				"category":             "Productivity",
				"benefit_statement":    "Cuts inbox time in half.",
			},
			map[string]any{
				"title":                "Expense Auditor",
				"prompt_suggestion":    "Flag out-of-policy expenses automatically.",
				"tools":                []any{"QuickBooks"},
				"hours_saved_per_week": 3.0,
				"category":             "Finance",
				"benefit_statement":    "No more manual receipt review.",
			},
		},
		"campaign_subject_line": "Two Ideas for Tuesday",
		"generation_date":       "2026-02-17T08:00:00Z",
		"total_ideas":           2.0,
	}
}

func envelopeWith(result any) *agent.Envelope {
	return &agent.Envelope{Success: true, Response: &agent.Payload{Result: result}}
}

func assertBatch(t *testing.T, batch *Batch) {
	t.Helper()
	if batch == nil {
		t.Fatal("batch is nil")
	}
	if len(batch.Ideas) != 2 {
		t.Fatalf("len(ideas) = %d, want 2", len(batch.Ideas))
	}
	if batch.Ideas[0].Title != "Inbox Triage Agent" {
		t.Errorf("title = %q", batch.Ideas[0].Title)
	}
	if batch.Ideas[0].HoursSavedPerWeek != 6 {
		t.Errorf("hours = %v, want 6", batch.Ideas[0].HoursSavedPerWeek)
	}
	if batch.Ideas[1].Category != "Finance" {
		t.Errorf("category = %q, want Finance", batch.Ideas[1].Category)
	}
	if batch.SubjectLine != "Two Ideas for Tuesday" {
		t.Errorf("subject = %q", batch.SubjectLine)
	}
	if batch.GeneratedAt != "2026-02-17T08:00:00Z" {
		t.Errorf("generatedAt = %q", batch.GeneratedAt)
	}
	if batch.TotalIdeas != 2 {
		t.Errorf("totalIdeas = %d, want 2", batch.TotalIdeas)
	}
}

func TestNormalizeBatch_DirectPayload(t *testing.T) {
	batch := NormalizeBatch(envelopeWith(batchPayload()), seqIDs(), fixedNow)
	assertBatch(t, batch)
}

func TestNormalizeBatch_WrappedOnce(t *testing.T) {
	env := envelopeWith(map[string]any{"result": batchPayload()})
	assertBatch(t, NormalizeBatch(env, seqIDs(), fixedNow))
}

func TestNormalizeBatch_WrappedTwice(t *testing.T) {
	env := envelopeWith(map[string]any{"result": map[string]any{"result": batchPayload()}})
	assertBatch(t, NormalizeBatch(env, seqIDs(), fixedNow))
}

func TestNormalizeBatch_StringEncoded(t *testing.T) {
	data, err := json.Marshal(batchPayload())
	if err != nil {
		t.Fatal(err)
	}
	assertBatch(t, NormalizeBatch(envelopeWith(string(data)), seqIDs(), fixedNow))
}

func TestNormalizeBatch_StringEncodedInsideWrapper(t *testing.T) {
	data, err := json.Marshal(batchPayload())
	if err != nil {
		t.Fatal(err)
	}
	env := envelopeWith(map[string]any{"result": string(data)})
	assertBatch(t, NormalizeBatch(env, seqIDs(), fixedNow))
}

func TestNormalizeBatch_DoubleStringEncoded(t *testing.T) {
	inner, err := json.Marshal(batchPayload())
	if err != nil {
		t.Fatal(err)
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		t.Fatal(err)
	}
	assertBatch(t, NormalizeBatch(envelopeWith(string(outer)), seqIDs(), fixedNow))
}

func TestNormalizeBatch_FailureFlag(t *testing.T) {
	env := &agent.Envelope{Success: false, Response: &agent.Payload{Result: batchPayload()}}
	if batch := NormalizeBatch(env, seqIDs(), fixedNow); batch != nil {
		t.Errorf("expected nil for success=false, got %+v", batch)
	}
}

func TestNormalizeBatch_NilResponse(t *testing.T) {
	env := &agent.Envelope{Success: true}
	if batch := NormalizeBatch(env, seqIDs(), fixedNow); batch != nil {
		t.Error("expected nil for missing response")
	}
}

func TestNormalizeBatch_UnparseableString(t *testing.T) {
	if batch := NormalizeBatch(envelopeWith("not json at all"), seqIDs(), fixedNow); batch != nil {
		t.Error("expected nil for undecodable string")
	}
}

func TestNormalizeBatch_NonObjectTerminal(t *testing.T) {
	if batch := NormalizeBatch(envelopeWith(42.0), seqIDs(), fixedNow); batch != nil {
		t.Error("expected nil for numeric payload")
	}
	if batch := NormalizeBatch(envelopeWith([]any{"a", "b"}), seqIDs(), fixedNow); batch != nil {
		t.Error("expected nil for array payload")
	}
}

func TestNormalizeBatch_FieldDefaults(t *testing.T) {
	payload := map[string]any{
		"ideas": []any{
			map[string]any{"title": "Bare Idea"},
		},
	}
	batch := NormalizeBatch(envelopeWith(payload), seqIDs(), fixedNow)
	if batch == nil {
		t.Fatal("batch is nil")
	}
	idea := batch.Ideas[0]
	if idea.Tools == nil || len(idea.Tools) != 0 {
		t.Errorf("tools = %#v, want empty slice", idea.Tools)
	}
	if idea.HoursSavedPerWeek != 0 {
		t.Errorf("hours = %v, want 0", idea.HoursSavedPerWeek)
	}
	if idea.Category != "General" {
		t.Errorf("category = %q, want General", idea.Category)
	}
	if idea.PromptSuggestion != "" || idea.BenefitStatement != "" {
		t.Error("missing string fields should default to empty")
	}
	if idea.ID != "id-1" {
		t.Errorf("id = %q, want locally generated id-1", idea.ID)
	}
	if batch.GeneratedAt != "2026-02-17T09:00:00Z" {
		t.Errorf("generatedAt fallback = %q", batch.GeneratedAt)
	}
	if batch.TotalIdeas != 1 {
		t.Errorf("totalIdeas = %d, want len(ideas)", batch.TotalIdeas)
	}
}

func TestNormalizeBatch_MalformedFieldsDegrade(t *testing.T) {
	payload := map[string]any{
		"ideas": []any{
			map[string]any{
				"title":                "Mixed Tools",
				"tools":                []any{"Gmail", 7.0, nil},
				"hours_saved_per_week": "lots",
				"category":             12.0,
			},
		},
		"campaign_subject_line": 99.0,
	}
	batch := NormalizeBatch(envelopeWith(payload), seqIDs(), fixedNow)
	if batch == nil {
		t.Fatal("batch is nil")
	}
	idea := batch.Ideas[0]
	if len(idea.Tools) != 2 || idea.Tools[0] != "Gmail" || idea.Tools[1] != "7" {
		t.Errorf("tools = %#v", idea.Tools)
	}
	if idea.HoursSavedPerWeek != 0 {
		t.Errorf("hours = %v, want 0 for unparseable", idea.HoursSavedPerWeek)
	}
	if idea.Category != "General" {
		t.Errorf("category = %q, want General for non-string", idea.Category)
	}
	if batch.SubjectLine != "" {
		t.Errorf("subject = %q, want empty for non-string", batch.SubjectLine)
	}
}

func TestNormalizeBatch_NegativeHoursClamp(t *testing.T) {
	payload := map[string]any{
		"ideas": []any{
			map[string]any{"title": "x", "hours_saved_per_week": -4.0},
		},
	}
	batch := NormalizeBatch(envelopeWith(payload), seqIDs(), fixedNow)
	if batch.Ideas[0].HoursSavedPerWeek != 0 {
		t.Errorf("hours = %v, want clamped to 0", batch.Ideas[0].HoursSavedPerWeek)
	}
}

func TestNormalizeBatch_InnerResultFieldNotUnwrapped(t *testing.T) {
	// A payload that carries both the signal key and a "result" key
	// must be taken as-is, not unwrapped further.
	payload := batchPayload()
	payload["result"] = "unrelated"
	assertBatch(t, NormalizeBatch(envelopeWith(payload), seqIDs(), fixedNow))
}

func TestNormalizeReceipt_Direct(t *testing.T) {
	env := envelopeWith(map[string]any{
		"email_sent":      true,
		"recipient_count": 12.0,
		"subject_line":    "Your Daily Ideas",
		"delivery_status": "delivered",
		"sent_at":         "2026-02-17T09:15:00Z",
	})
	receipt := NormalizeReceipt(env, fixedNow)
	if receipt == nil {
		t.Fatal("receipt is nil")
	}
	if !receipt.EmailSent {
		t.Error("emailSent = false")
	}
	if receipt.RecipientCount != 12 {
		t.Errorf("recipientCount = %d, want 12", receipt.RecipientCount)
	}
	if receipt.SubjectLine != "Your Daily Ideas" {
		t.Errorf("subject = %q", receipt.SubjectLine)
	}
	if receipt.DeliveryStatus != "delivered" {
		t.Errorf("deliveryStatus = %q", receipt.DeliveryStatus)
	}
	if receipt.SentAt != "2026-02-17T09:15:00Z" {
		t.Errorf("sentAt = %q", receipt.SentAt)
	}
}

func TestNormalizeReceipt_WrappedAndEncoded(t *testing.T) {
	inner, err := json.Marshal(map[string]any{
		"email_sent":      true,
		"recipient_count": 3.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	env := envelopeWith(map[string]any{"result": string(inner)})
	receipt := NormalizeReceipt(env, fixedNow)
	if receipt == nil {
		t.Fatal("receipt is nil")
	}
	if receipt.RecipientCount != 3 {
		t.Errorf("recipientCount = %d, want 3", receipt.RecipientCount)
	}
	if receipt.SentAt != "2026-02-17T09:00:00Z" {
		t.Errorf("sentAt fallback = %q", receipt.SentAt)
	}
}

func TestNormalizeReceipt_Failure(t *testing.T) {
	env := &agent.Envelope{Success: false}
	if receipt := NormalizeReceipt(env, fixedNow); receipt != nil {
		t.Error("expected nil for success=false")
	}
	if receipt := NormalizeReceipt(envelopeWith("{{bad"), fixedNow); receipt != nil {
		t.Error("expected nil for undecodable string")
	}
}
