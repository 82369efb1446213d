package campaign

import "github.com/lumenworks/ideaengine/internal/ideas"

// SampleCampaigns is the demo history shown when sample data is
// toggled on; it is never persisted.
var SampleCampaigns = []Record{
	{
		ID:              "camp-1",
		Date:            "2026-02-17",
		Ideas:           ideas.SampleIdeas[0:3],
		RecipientCount:  45,
		RecipientEmails: "team@company.com, partners@startup.io",
		SubjectLine:     "3 AI Agent Ideas to Supercharge Your Week",
		Status:          StatusSent,
		SentAt:          "2026-02-17T09:15:00Z",
	},
	{
		ID:              "camp-2",
		Date:            "2026-02-16",
		Ideas:           ideas.SampleIdeas[2:5],
		RecipientCount:  38,
		RecipientEmails: "newsletter@company.com",
		SubjectLine:     "Fresh Agent Ideas: Productivity + Finance + Strategy",
		Status:          StatusSent,
		SentAt:          "2026-02-16T08:30:00Z",
	},
	{
		ID:              "camp-3",
		Date:            "2026-02-15",
		Ideas:           ideas.SampleIdeas[0:2],
		SubjectLine:     "Automate Customer Success & Marketing Today",
		Status:          StatusGenerated,
	},
}
