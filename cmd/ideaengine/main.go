package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/lumenworks/ideaengine/internal/agent"
	"github.com/lumenworks/ideaengine/internal/campaign"
	"github.com/lumenworks/ideaengine/internal/config"
	"github.com/lumenworks/ideaengine/internal/engine"
	"github.com/lumenworks/ideaengine/internal/notify"
	"github.com/lumenworks/ideaengine/internal/schedule"
	"github.com/lumenworks/ideaengine/internal/store"
	"github.com/lumenworks/ideaengine/internal/web"
)

// AppOptions carries injectable dependencies for testing the command
// handlers without a live agent runtime.
type AppOptions struct {
	Invoker agent.Invoker
	Stdout  io.Writer
	Stderr  io.Writer
}

// app bundles the wired-up services behind a command invocation.
type app struct {
	cfg     *config.Config
	store   *store.Store
	invoker agent.Invoker
	eng     *engine.Engine
	stdout  io.Writer
}

func newRecordID() string {
	return strings.ToLower(ulid.Make().String())
}

func buildApp(opts AppOptions) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	invoker := opts.Invoker
	if invoker == nil {
		inv, err := agent.NewRuntimeInvoker(cfg)
		if err != nil {
			st.Close()
			return nil, err
		}
		invoker = inv
	}

	var notifier engine.Notifier
	if cfg.Notify.Telegram.Enabled {
		tn, err := notify.NewTelegramNotifier(cfg.Notify.Telegram)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		notifier = tn
	}

	ledger := campaign.NewLedger(st, newRecordID)
	counter := campaign.NewCounter(st)
	eng := engine.NewWithOptions(cfg, invoker, ledger, counter, engine.Options{
		Notifier: notifier,
	})

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	return &app{cfg: cfg, store: st, invoker: invoker, eng: eng, stdout: stdout}, nil
}

func (a *app) close() {
	if c, ok := a.invoker.(interface{ Close() }); ok {
		c.Close()
	}
	_ = a.store.Close()
}

var rootCmd = &cobra.Command{
	Use:   "ideaengine",
	Short: "ideaengine - daily AI agent idea campaigns",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server with the daily schedule",
	RunE:  runServe,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one idea-generation cycle and print the batch",
	RunE:  runGenerate,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send the current idea batch as an email campaign",
	RunE:  runSend,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past campaigns",
	RunE:  runHistory,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ideaengine status",
	RunE:  runStatus,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directories",
	RunE:  runOnboard,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show the persisted schedule state",
	RunE:  runSchedule,
}

var (
	sendToFlag     string
	sendCCFlag     string
	searchFlag     string
	categoryFlag   string
	showSampleFlag bool
)

func init() {
	sendCmd.Flags().StringVar(&sendToFlag, "to", "", "Comma-separated recipient emails")
	sendCmd.Flags().StringVar(&sendCCFlag, "cc", "", "Comma-separated CC emails")
	_ = sendCmd.MarkFlagRequired("to")
	historyCmd.Flags().StringVar(&searchFlag, "search", "", "Search subject lines, titles and prompts")
	historyCmd.Flags().StringVar(&categoryFlag, "category", "all", "Filter by idea category")
	historyCmd.Flags().BoolVar(&showSampleFlag, "sample", false, "Include the demo campaigns")
	rootCmd.AddCommand(serveCmd, generateCmd, sendCmd, historyCmd, statusCmd, onboardCmd, scheduleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	return runServeWithOptions(AppOptions{})
}

func runServeWithOptions(opts AppOptions) error {
	a, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sched := schedule.NewService(a.cfg.Schedule, a.cfg.ScheduleStorePath())
	sched.OnRun = func(ctx context.Context) error {
		_, err := a.eng.Generate(ctx)
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start schedule: %w", err)
	}
	defer sched.Stop()

	srv := web.NewServer(a.cfg, a.eng, sched)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer srv.Stop()

	<-ctx.Done()
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	return runGenerateWithOptions(AppOptions{})
}

func runGenerateWithOptions(opts AppOptions) error {
	a, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	batch, err := a.eng.Generate(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "%s\n\n", batch.SubjectLine)
	for i, idea := range batch.Ideas {
		fmt.Fprintf(a.stdout, "%d. %s [%s, %gh/week]\n", i+1, idea.Title, idea.Category, idea.HoursSavedPerWeek)
		fmt.Fprintf(a.stdout, "   %s\n", idea.BenefitStatement)
		if len(idea.Tools) > 0 {
			fmt.Fprintf(a.stdout, "   Tools: %s\n", strings.Join(idea.Tools, ", "))
		}
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	return runSendWithOptions(AppOptions{}, sendToFlag, sendCCFlag)
}

func runSendWithOptions(opts AppOptions, to, cc string) error {
	a, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.eng.Send(context.Background(), to, cc)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Campaign %q sent to %d recipient(s)\n", result.Record.SubjectLine, result.RecipientCount)
	if result.Receipt != nil && result.Receipt.DeliveryStatus != "" {
		fmt.Fprintf(a.stdout, "Delivery status: %s\n", result.Receipt.DeliveryStatus)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	return runHistoryWithOptions(AppOptions{}, searchFlag, categoryFlag, showSampleFlag)
}

func runHistoryWithOptions(opts AppOptions, search, category string, sample bool) error {
	a, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	records := a.eng.History(search, category, sample)
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "No campaigns found.")
		return nil
	}
	for _, rec := range records {
		status := rec.Status
		if rec.Status == campaign.StatusSent {
			status = fmt.Sprintf("sent to %d", rec.RecipientCount)
		}
		fmt.Fprintf(a.stdout, "%s  %-40s  %d ideas  [%s]\n", rec.Date, rec.SubjectLine, len(rec.Ideas), status)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Store: %s\n", cfg.DBPath())
	fmt.Printf("Model: %s\n", cfg.Agent.Model)
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Schedule: %s (%s %s)\n", cfg.Schedule.ID, cfg.Schedule.CronExpr, cfg.Schedule.Timezone)
	fmt.Printf("Telegram notify: enabled=%v\n", cfg.Notify.Telegram.Enabled)

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Printf("Store: error (%v)\n", err)
		return nil
	}
	defer st.Close()

	counter := campaign.NewCounter(st)
	fmt.Printf("Campaigns sent in %s: %d\n", counter.Month(), counter.Count())
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(cfgDir, "data"), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, _ := config.LoadConfig()
	if err := os.MkdirAll(cfg.Agent.Workspace, 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	fmt.Printf("Workspace ready: %s\n", cfg.Agent.Workspace)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key\n", cfgPath)
	fmt.Println("  2. Or set IDEAENGINE_API_KEY environment variable")
	fmt.Println("  3. Run 'ideaengine generate' to test")
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := os.ReadFile(cfg.ScheduleStorePath())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No schedule state yet. Configured: %s (%s %s)\n",
				cfg.Schedule.ID, cfg.Schedule.CronExpr, cfg.Schedule.Timezone)
			return nil
		}
		return fmt.Errorf("read schedule store: %w", err)
	}

	var state struct {
		Schedule   schedule.Schedule       `json:"schedule"`
		Executions []schedule.ExecutionLog `json:"executions"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse schedule store: %w", err)
	}

	s := state.Schedule
	fmt.Printf("Schedule: %s (%s)\n", s.ID, s.Name)
	fmt.Printf("Cron: %s %s\n", s.CronExpression, s.Timezone)
	fmt.Printf("Active: %v\n", s.IsActive)
	if s.NextRunTime != "" {
		fmt.Printf("Next run: %s\n", s.NextRunTime)
	}
	if s.LastRunAt != "" {
		outcome := "failed"
		if s.LastRunSuccess != nil && *s.LastRunSuccess {
			outcome = "succeeded"
		}
		fmt.Printf("Last run: %s (%s)\n", s.LastRunAt, outcome)
	}
	if len(state.Executions) > 0 {
		fmt.Println("\nRecent executions:")
		limit := len(state.Executions)
		if limit > 10 {
			limit = 10
		}
		for _, e := range state.Executions[:limit] {
			mark := "ok"
			if !e.Success {
				mark = "FAIL: " + e.ErrorMessage
			}
			fmt.Printf("  %s  attempt %d/%d  %s\n", e.ExecutedAt, e.Attempt, e.MaxAttempts, mark)
		}
	}
	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}
