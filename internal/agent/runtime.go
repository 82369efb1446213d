package agent

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cexll/agentsdk-go/pkg/api"
	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/lumenworks/ideaengine/internal/config"
)

// Runtime interface for the agent runtime (allows mocking in tests)
type Runtime interface {
	Run(ctx context.Context, req api.Request) (*api.Response, error)
	Close()
}

// runtimeAdapter wraps api.Runtime to implement Runtime
type runtimeAdapter struct {
	rt *api.Runtime
}

func (r *runtimeAdapter) Run(ctx context.Context, req api.Request) (*api.Response, error) {
	return r.rt.Run(ctx, req)
}

func (r *runtimeAdapter) Close() {
	r.rt.Close()
}

// RuntimeFactory creates a Runtime for one agent identity
type RuntimeFactory func(cfg *config.Config, sysPrompt string) (Runtime, error)

// DefaultRuntimeFactory creates the default agentsdk-go runtime
func DefaultRuntimeFactory(cfg *config.Config, sysPrompt string) (Runtime, error) {
	var provider api.ModelFactory
	switch cfg.Provider.Type {
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
		}
	default: // "anthropic" or empty
		provider = &model.AnthropicProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
		}
	}

	rt, err := api.New(context.Background(), api.Options{
		ProjectRoot:   cfg.Agent.Workspace,
		ModelFactory:  provider,
		SystemPrompt:  sysPrompt,
		MaxIterations: cfg.Agent.MaxToolIterations,
	})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	return &runtimeAdapter{rt: rt}, nil
}

// RuntimeInvoker backs the Invoker interface with agentsdk-go
// runtimes, one per agent identity, created lazily. The runtime's
// text output is delivered as the envelope's result, so downstream
// parsing must treat it as an opaque, possibly JSON-encoded value.
type RuntimeInvoker struct {
	cfg      *config.Config
	factory  RuntimeFactory
	mu       sync.Mutex
	runtimes map[string]Runtime
}

func NewRuntimeInvoker(cfg *config.Config) (*RuntimeInvoker, error) {
	return NewRuntimeInvokerWithFactory(cfg, DefaultRuntimeFactory)
}

// NewRuntimeInvokerWithFactory allows injecting a runtime factory for tests.
func NewRuntimeInvokerWithFactory(cfg *config.Config, factory RuntimeFactory) (*RuntimeInvoker, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'ideaengine onboard' or set IDEAENGINE_API_KEY / ANTHROPIC_API_KEY")
	}
	return &RuntimeInvoker{
		cfg:      cfg,
		factory:  factory,
		runtimes: make(map[string]Runtime),
	}, nil
}

func (r *RuntimeInvoker) runtimeFor(agentID string) (Runtime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rt, ok := r.runtimes[agentID]; ok {
		return rt, nil
	}

	var sysPrompt string
	switch agentID {
	case r.cfg.Agents.EmailID:
		sysPrompt = emailAgentPrompt
	default:
		sysPrompt = managerAgentPrompt
	}

	rt, err := r.factory(r.cfg, sysPrompt)
	if err != nil {
		return nil, err
	}
	r.runtimes[agentID] = rt
	return rt, nil
}

func (r *RuntimeInvoker) Invoke(ctx context.Context, message, agentID string) (*Envelope, error) {
	rt, err := r.runtimeFor(agentID)
	if err != nil {
		return nil, err
	}

	sessionID := "dashboard:" + agentID
	resp, err := rt.Run(ctx, api.Request{
		Prompt:    message,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke agent %s: %w", agentID, err)
	}
	if resp == nil || resp.Result == nil {
		return &Envelope{Success: false, Error: "empty agent result"}, nil
	}

	log.Printf("[agent] %s replied (%d bytes)", agentID, len(resp.Result.Output))
	return &Envelope{
		Success:   true,
		SessionID: sessionID,
		Response:  &Payload{Result: resp.Result.Output},
	}, nil
}

func (r *RuntimeInvoker) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rt := range r.runtimes {
		rt.Close()
		delete(r.runtimes, id)
	}
}

const managerAgentPrompt = `You are the Idea Manager agent for a daily idea-generation dashboard.

When asked to generate ideas, reply with a single JSON object and nothing else:
{
  "ideas": [
    {
      "title": "...",
      "prompt_suggestion": "...",
      "tools": ["...", "..."],
      "hours_saved_per_week": 0,
      "category": "...",
      "benefit_statement": "..."
    }
  ],
  "campaign_subject_line": "...",
  "generation_date": "<ISO 8601 timestamp>",
  "total_ideas": 0
}

Categories should be short business-function names (Marketing, Finance,
Productivity, Customer Success, Strategy, ...). Estimates must be realistic.`

const emailAgentPrompt = `You are the Email Sender agent for a daily idea-generation dashboard.

When given campaign content and recipients, compose and send the email,
then reply with a single JSON object and nothing else:
{
  "email_sent": true,
  "recipient_count": 0,
  "subject_line": "...",
  "delivery_status": "...",
  "sent_at": "<ISO 8601 timestamp>"
}`
