package planner

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"agentloop/internal/logging"
)

// =============================================================================
// GOOGLE GENAI PLANNER
// =============================================================================

// slowPlanThreshold is the generation time above which a warning is logged.
const slowPlanThreshold = 20 * time.Second

// GeminiConfig configures a GeminiPlanner.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration

	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string
}

// GeminiPlanner generates plans with Google's Gemini API.
type GeminiPlanner struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiPlanner creates a planner. It fails with ErrNoAPIKey when no
// key is configured.
func NewGeminiPlanner(ctx context.Context, cfg GeminiConfig) (*GeminiPlanner, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	logging.PlannerDebug("GeminiPlanner ready: model=%s timeout=%s", cfg.Model, cfg.Timeout)
	return &GeminiPlanner{client: client, cfg: cfg}, nil
}

// Model returns the configured model name.
func (p *GeminiPlanner) Model() string { return p.cfg.Model }

// GeneratePlan asks the model for a plan and returns it with code fences removed.
func (p *GeminiPlanner) GeneratePlan(ctx context.Context, task string) (string, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, "Plan generation")
	defer timer.StopWithThreshold(slowPlanThreshold)

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromText(BuildPrompt(task), genai.RoleUser),
	}

	logging.Planner("Generating plan with %s for task (%d chars)", p.cfg.Model, len(task))
	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.cfg.Temperature),
	})
	if err != nil {
		logging.PlannerError("GenerateContent failed: %v", err)
		return "", fmt.Errorf("error generating plan: %w", err)
	}

	plan := CleanPlan(resp.Text())
	if plan == "" {
		return "", ErrEmptyPlan
	}

	logging.PlannerDebug("Plan generated (%d bytes)", len(plan))
	return plan, nil
}
