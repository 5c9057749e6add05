package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calvinwilliamsjr/orch/internal/config"
	"github.com/calvinwilliamsjr/orch/internal/planner"
	"github.com/calvinwilliamsjr/orch/internal/registry"
	"github.com/calvinwilliamsjr/orch/internal/tui"
	"github.com/calvinwilliamsjr/orch/internal/workflow"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

var (
	planAgents     []string
	planCapability string
)

var planCmd = &cobra.Command{
	Use:   "plan <request>",
	Short: "Build and display a plan without executing it",
	Long: `Resolve the request into an invocation plan and a staged workflow plan,
then display both with estimates. Nothing is executed.

Examples:
  orch plan "run migrations then deploy the api"
  orch plan "review the release" --capability security
  orch plan "fix the login bug" --agents backend-dev,qa-engineer`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringSliceVar(&planAgents, "agents", nil, "Invoke only the named agents")
	planCmd.Flags().StringVar(&planCapability, "capability", "", "Invoke only agents with this capability")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	invocation, wf, _, _, err := buildPlans(cfg, args[0], planAgents, planCapability)
	if err != nil {
		return err
	}

	printInvocationSummary(invocation)
	fmt.Println()
	fmt.Print(tui.RenderWorkflow(wf))
	return nil
}

// buildPlans runs the shared planning pipeline: discover agents, resolve
// the invocation scope, parse the request into staged units, decompose
// untagged units into capability-tagged work, and assign every unit to a
// candidate agent. The registry snapshot the plan was built against is
// returned alongside.
func buildPlans(cfg *config.Config, request string, agentIDs []string, capability string) (*models.InvocationPlan, *models.WorkflowPlan, map[string]string, *registry.Registry, error) {
	reg, err := registry.Discover(cfg.Registry.Path)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	p := planner.New(planner.Config{
		ConfirmationThreshold: cfg.Planner.ConfirmationThreshold,
		PerAgentTime:          cfg.Planner.PerAgentTime,
		PerAgentCost:          cfg.Planner.PerAgentCost,
		MaxConcurrency:        cfg.Scheduler.MaxConcurrency,
		MinTeamFraction:       cfg.Registry.MinTeamFraction,
	})
	invocation, err := p.Plan(planner.Request{
		Text:       request,
		AgentIDs:   agentIDs,
		Capability: capability,
	}, reg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	parser := workflow.NewParser(nil)
	wf, err := parser.Parse(request, nil)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	// Untagged units are decomposed into capability-tagged work before
	// assignment, then the plan is re-staged around the expanded set.
	units := workflow.NewDecomposer(nil).ExpandUnits(wf.Units())
	wf, err = parser.ParseUnits(request, units)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	assignments, err := planner.AssignUnits(wf, invocation.AgentIDs, reg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	for _, u := range wf.Units() {
		u.AssignedTo = assignments[u.ID]
	}

	return invocation, wf, assignments, reg, nil
}

func printInvocationSummary(plan *models.InvocationPlan) {
	bold := color.New(color.Bold)
	warn := color.New(color.FgYellow, color.Bold)

	bold.Printf("Invocation %s (%s scope)\n", plan.ID, plan.Scope)
	fmt.Printf("  agents: %d (%s)\n", len(plan.AgentIDs), strings.Join(plan.AgentIDs, ", "))
	fmt.Printf("  estimated time: %s, estimated cost: $%.2f\n",
		plan.EstimatedTime, plan.EstimatedCost)
	if plan.RequiresConfirmation {
		warn.Printf("  large invocation: confirmation required before execution\n")
	}
}
