package ideas

// Idea is one actionable automation suggestion produced by the
// manager agent. IDs are generated locally; the agent never supplies
// an authoritative one.
type Idea struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	PromptSuggestion  string   `json:"promptSuggestion"`
	Tools             []string `json:"tools"`
	HoursSavedPerWeek float64  `json:"hoursSavedPerWeek"`
	Category          string   `json:"category"`
	BenefitStatement  string   `json:"benefitStatement"`
}

// Batch is the output of one generation call. TotalIdeas is the
// count the agent declared; len(Ideas) is authoritative for display.
type Batch struct {
	Ideas       []Idea `json:"ideas"`
	SubjectLine string `json:"subjectLine"`
	GeneratedAt string `json:"generatedAt"`
	TotalIdeas  int    `json:"totalIdeas"`
}

// EmailReceipt is the normalized reply of one send call.
type EmailReceipt struct {
	EmailSent      bool   `json:"emailSent"`
	RecipientCount int    `json:"recipientCount"`
	SubjectLine    string `json:"subjectLine"`
	DeliveryStatus string `json:"deliveryStatus"`
	SentAt         string `json:"sentAt"`
}

// SampleIdeas is the curated batch shown when sample data is toggled
// on and no real generation has happened yet.
var SampleIdeas = []Idea{
	{
		ID:                "sample-1",
		Title:             "Customer Onboarding Automator",
		PromptSuggestion:  "Build an agent that sends personalized welcome emails, schedules onboarding calls, and creates CRM entries for new customers automatically.",
		Tools:             []string{"Gmail", "Google Calendar", "HubSpot CRM"},
		HoursSavedPerWeek: 8,
		Category:          "Customer Success",
		BenefitStatement:  "Reduces manual onboarding steps by 90%, ensuring every new customer receives a consistent, timely welcome experience.",
	},
	{
		ID:                "sample-2",
		Title:             "Social Media Trend Spotter",
		PromptSuggestion:  "Create an agent that monitors trending topics on X (Twitter) and LinkedIn, then drafts relevant post ideas tailored to your brand voice.",
		Tools:             []string{"Twitter API", "LinkedIn", "Slack"},
		HoursSavedPerWeek: 5,
		Category:          "Marketing",
		BenefitStatement:  "Stay ahead of industry conversations without manually scrolling feeds -- get curated trend alerts delivered to Slack.",
	},
	{
		ID:                "sample-3",
		Title:             "Meeting Notes Summarizer",
		PromptSuggestion:  "Design an agent that joins Zoom meetings, transcribes key discussion points, assigns action items, and posts summaries to Notion.",
		Tools:             []string{"Zoom", "Notion", "Slack"},
		HoursSavedPerWeek: 6,
		Category:          "Productivity",
		BenefitStatement:  "Never lose track of meeting decisions again. Auto-generated summaries with tagged action items keep the entire team aligned.",
	},
	{
		ID:                "sample-4",
		Title:             "Invoice Processing Pipeline",
		PromptSuggestion:  "Build an agent that extracts data from uploaded invoices, validates amounts, creates entries in QuickBooks, and flags anomalies for review.",
		Tools:             []string{"QuickBooks", "Google Drive", "Gmail"},
		HoursSavedPerWeek: 10,
		Category:          "Finance",
		BenefitStatement:  "Eliminates manual data entry for invoices, reducing processing time from 15 minutes to under 30 seconds per invoice.",
	},
	{
		ID:                "sample-5",
		Title:             "Competitive Intelligence Tracker",
		PromptSuggestion:  "Create an agent that monitors competitor websites, press releases, and product updates, then compiles a weekly intelligence brief.",
		Tools:             []string{"Web Scraper", "Google Sheets", "Gmail"},
		HoursSavedPerWeek: 4,
		Category:          "Strategy",
		BenefitStatement:  "Automated competitive monitoring ensures you never miss a market shift while freeing your team from tedious manual research.",
	},
}

// SampleSubjectLine pairs with SampleIdeas for the empty-state view.
const SampleSubjectLine = "Top 5 AI Agent Ideas to Transform Your Workflow This Week"
