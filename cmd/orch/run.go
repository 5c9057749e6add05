package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calvinwilliamsjr/orch/internal/audit"
	"github.com/calvinwilliamsjr/orch/internal/config"
	"github.com/calvinwilliamsjr/orch/internal/dispatch"
	"github.com/calvinwilliamsjr/orch/internal/tui"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

var (
	runAgentsFlag []string
	runCapability string
	runSimulate   bool
	runYes        bool
	runQuiet      bool
	runDebugLog   string
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Plan and execute a work request",
	Long: `Resolve the request, build a staged workflow plan, and execute it over
the agent pool.

Plans that exceed the confirmation threshold block on an explicit accept
prompt before the first stage starts. Every execution appends one entry
to the audit log; if the entry cannot be written the run is reported as
unverified.

Examples:
  orch run "run migrations then deploy the api, restart workers together"
  orch run "everyone review the release" --yes
  orch run "smoke test the build" --simulate`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVar(&runAgentsFlag, "agents", nil, "Invoke only the named agents")
	runCmd.Flags().StringVar(&runCapability, "capability", "", "Invoke only agents with this capability")
	runCmd.Flags().BoolVar(&runSimulate, "simulate", false, "Use the simulated worker (no API key needed)")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Confirm large invocations without prompting")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Disable the live progress display")
	runCmd.Flags().StringVar(&runDebugLog, "debug-log", "", "Write dispatcher debug output to this file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	invocation, wf, assignments, reg, err := buildPlans(cfg, args[0], runAgentsFlag, runCapability)
	if err != nil {
		return err
	}

	printInvocationSummary(invocation)

	if invocation.PendingConfirmation() {
		if runYes {
			invocation.Confirmed = true
		} else {
			result, err := tui.Confirm(invocation)
			if err != nil {
				return err
			}
			if !result.Accepted {
				fmt.Println("aborted:", result.Reason)
				return nil
			}
			invocation.Confirmed = true
		}
	}

	w, err := buildWorker(cfg, runSimulate)
	if err != nil {
		return err
	}

	auditPath := cfg.Audit.Path
	if auditPath == "" {
		auditPath = audit.DefaultDBPath(".")
	}
	store, err := audit.Open(auditPath)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer store.Close()

	logger, err := dispatch.NewDebugLogger(runDebugLog)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer logger.Close()

	d := dispatch.New(dispatch.Config{
		MaxConcurrency: cfg.Scheduler.MaxConcurrency,
		MaxRetries:     cfg.Scheduler.MaxRetries,
		RetryBackoff:   cfg.Scheduler.RetryBackoff,
		UnitTimeout:    cfg.Scheduler.UnitTimeout,
		FailFast:       cfg.Scheduler.FailFast,
	}, w, dispatch.WithAuditStore(store), dispatch.WithDebugLogger(logger))

	// Interrupts cancel cooperatively: running units are abandoned and
	// the rest of the plan is marked cancelled. In quiet mode ctrl-c
	// arrives as a signal; under the progress display the terminal is
	// in raw mode, so the key press reaches the model instead and is
	// forwarded to the dispatcher's Cancel.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := dispatch.ExecRequest{
		Invocation:     invocation,
		Workflow:       wf,
		Assignments:    assignments,
		CriticalAgents: reg.CriticalAgents(),
	}

	if runQuiet {
		report, err := d.Execute(ctx, req)
		if err != nil {
			return err
		}
		printReport(report, wf)
		return nil
	}

	type execResult struct {
		report *dispatch.Report
		err    error
	}
	done := make(chan execResult, 1)
	go func() {
		report, err := d.Execute(ctx, req)
		done <- execResult{report, err}
	}()

	if err := tui.RunProgress(d.Events(), d.Cancel); err != nil {
		// Fall through; the execution result is still authoritative.
		fmt.Fprintln(os.Stderr, err)
	}

	result := <-done
	if result.err != nil {
		return result.err
	}
	printReport(result.report, wf)
	return nil
}

func printReport(report *dispatch.Report, wf *models.WorkflowPlan) {
	fmt.Println()
	fmt.Print(tui.RenderWorkflow(wf))
	fmt.Println()

	outcome := color.New(color.Bold)
	switch report.Outcome {
	case models.PlanCompleted:
		outcome = color.New(color.FgGreen, color.Bold)
	case models.PlanFailed, models.PlanUnverified:
		outcome = color.New(color.FgRed, color.Bold)
	case models.PlanPartial, models.PlanCancelled:
		outcome = color.New(color.FgYellow, color.Bold)
	}
	outcome.Printf("plan %s: %s\n", report.PlanID, report.Outcome)

	fmt.Printf("  invoked %d agents in %s\n",
		len(report.InvokedAgents), report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	for _, issue := range report.Issues {
		color.New(color.FgYellow).Printf("  ! %s\n", issue)
	}
}
