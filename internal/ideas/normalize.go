package ideas

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumenworks/ideaengine/internal/agent"
)

// Agent replies are not contractually shaped: the payload may arrive
// directly, wrapped once or twice as {result: ...}, and at any level
// it may be a JSON-encoded string instead of a structured object
// (relay layers re-encode freely). The normalizers below unwrap
// defensively and coerce field by field; a malformed field degrades
// to its default rather than failing the whole parse. They return nil
// only when the envelope reports failure, a string level fails to
// decode, or the terminal value is not an object.

// IDFunc generates a local id for one recovered idea.
type IDFunc func() string

// unwrap peels up to two layers of {result: ...} indirection and
// JSON-string encoding. signal is the key whose presence marks the
// value as the payload itself ("ideas" for batches, "email_sent" for
// receipts) so an inner payload field named "result" is never
// mistaken for another wrapper.
func unwrap(raw any, signal string) (map[string]any, bool) {
	working := raw
	for i := 0; i < 2; i++ {
		if obj, ok := working.(map[string]any); ok {
			inner, hasResult := obj["result"]
			_, hasSignal := obj[signal]
			if hasResult && !hasSignal {
				working = inner
			}
		}
		if s, ok := working.(string); ok {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err != nil {
				return nil, false
			}
			working = decoded
		}
	}
	obj, ok := working.(map[string]any)
	return obj, ok
}

// NormalizeBatch recovers a typed idea batch from a generation reply,
// or nil when no payload can be recovered.
func NormalizeBatch(env *agent.Envelope, newID IDFunc, now func() time.Time) *Batch {
	if env == nil || !env.Success || env.Response == nil {
		return nil
	}

	data, ok := unwrap(env.Response.Result, "ideas")
	if !ok {
		return nil
	}

	rawIdeas, _ := data["ideas"].([]any)
	batch := &Batch{
		Ideas:       make([]Idea, 0, len(rawIdeas)),
		SubjectLine: asString(data["campaign_subject_line"], ""),
		GeneratedAt: asString(data["generation_date"], now().UTC().Format(time.RFC3339)),
	}
	for _, raw := range rawIdeas {
		fields, _ := raw.(map[string]any)
		batch.Ideas = append(batch.Ideas, Idea{
			ID:                newID(),
			Title:             asString(fields["title"], ""),
			PromptSuggestion:  asString(fields["prompt_suggestion"], ""),
			Tools:             asStringSlice(fields["tools"]),
			HoursSavedPerWeek: asNonNegative(fields["hours_saved_per_week"]),
			Category:          asString(fields["category"], "General"),
			BenefitStatement:  asString(fields["benefit_statement"], ""),
		})
	}

	batch.TotalIdeas = int(asNonNegative(data["total_ideas"]))
	if batch.TotalIdeas == 0 {
		batch.TotalIdeas = len(rawIdeas)
	}
	return batch
}

// NormalizeReceipt recovers a typed email receipt from a send reply,
// or nil when no payload can be recovered.
func NormalizeReceipt(env *agent.Envelope, now func() time.Time) *EmailReceipt {
	if env == nil || !env.Success || env.Response == nil {
		return nil
	}

	data, ok := unwrap(env.Response.Result, "email_sent")
	if !ok {
		return nil
	}

	sent, _ := data["email_sent"].(bool)
	return &EmailReceipt{
		EmailSent:      sent,
		RecipientCount: int(asNonNegative(data["recipient_count"])),
		SubjectLine:    asString(data["subject_line"], ""),
		DeliveryStatus: asString(data["delivery_status"], ""),
		SentAt:         asString(data["sent_at"], now().UTC().Format(time.RFC3339)),
	}
}

func asString(v any, def string) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

func asNonNegative(v any) float64 {
	n, ok := v.(float64)
	if !ok || n != n || n < 0 {
		return 0
	}
	return n
}

func asStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case nil:
			// skip
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	return out
}
