package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calvinwilliamsjr/orch/internal/config"
	"github.com/calvinwilliamsjr/orch/internal/registry"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

var (
	agentsJSON  bool
	agentsWatch bool
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents discovered from the manifest directory",
	Long: `Scan the manifest directory and list every discovered agent with its
capabilities, criticality and availability.

Files matching the exclusion patterns (templates, drafts, READMEs) are
skipped. Discovery is always a fresh scan; there is no cached agent set.
With --watch the command keeps running and re-lists the agents whenever
a descriptor file changes.`,
	RunE: runAgents,
}

func init() {
	agentsCmd.Flags().BoolVar(&agentsJSON, "json", false, "Output in JSON format")
	agentsCmd.Flags().BoolVar(&agentsWatch, "watch", false, "Re-list agents when descriptor files change")
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := listAgents(cfg.Registry.Path); err != nil {
		return err
	}
	if !agentsWatch {
		return nil
	}
	return watchAgents(cfg.Registry.Path)
}

// watchAgents blocks on manifest directory changes and re-lists the agents
// after each one, until interrupted.
func watchAgents(path string) error {
	w, err := registry.Watch(path)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dim := color.New(color.Faint)
	dim.Printf("\nwatching %s for changes (ctrl-c to stop)\n", path)

	for {
		select {
		case changed := <-w.Changes():
			dim.Printf("\n%s changed\n", changed)
			if err := listAgents(path); err != nil {
				// The directory may be mid-edit; keep watching.
				fmt.Fprintln(os.Stderr, err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func listAgents(path string) error {
	reg, err := registry.Discover(path)
	if err != nil {
		return err
	}

	if agentsJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reg.All())
	}

	bold := color.New(color.Bold)
	critical := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	bold.Printf("%d agents discovered in %s\n\n", reg.Count(), reg.Source())
	for _, desc := range reg.All() {
		marker := "  "
		if desc.Critical {
			marker = critical.Sprint("! ")
		}
		fmt.Printf("%s%s", marker, desc.ID)
		if len(desc.Capabilities) > 0 {
			dim.Printf("  [%s]", strings.Join(desc.Capabilities, ", "))
		}
		if desc.Availability != models.AvailabilityIdle {
			dim.Printf("  (%s)", desc.Availability)
		}
		fmt.Println()
	}

	if criticals := reg.CriticalAgents(); len(criticals) > 0 {
		fmt.Println()
		critical.Printf("! critical: ")
		fmt.Println(strings.Join(criticals, ", "))
	}
	return nil
}
