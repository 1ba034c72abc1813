// Command allocator generates a synthetic workload, allocates resource units
// to projects with the selected strategy and prints a YAML report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-capacity-allocator/internal/config"
	"github.com/llm-d/llm-d-capacity-allocator/internal/engines/allocator"
	"github.com/llm-d/llm-d-capacity-allocator/internal/logging"
	"github.com/llm-d/llm-d-capacity-allocator/internal/metrics"
	"github.com/llm-d/llm-d-capacity-allocator/internal/report"
	"github.com/llm-d/llm-d-capacity-allocator/pkg/generator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("allocator", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}

	logger, err := logging.Setup(stderr, cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	ctx = ctrl.LoggerInto(ctx, logger)

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheusRecorder(registry)
	if err != nil {
		return err
	}

	resourceConfig, err := cfg.ResourceGeneratorConfig()
	if err != nil {
		return err
	}
	resourceGen, err := generator.NewResourceGenerator(resourceConfig)
	if err != nil {
		return err
	}
	resources := resourceGen.Generate()

	projectConfig, err := cfg.ProjectGeneratorConfig(resources)
	if err != nil {
		return err
	}
	projectGen, err := generator.NewProjectGenerator(projectConfig)
	if err != nil {
		return err
	}
	projects, err := projectGen.Generate()
	if err != nil {
		return err
	}

	logger.Info("Generated workload",
		"resources", len(resources),
		"projects", len(projects),
		"distribution", resourceConfig.Distribution.String(),
		"profile", projectConfig.Profile.String())

	strategy, err := cfg.AllocatorStrategy()
	if err != nil {
		return err
	}
	allocatorConfig, err := cfg.AllocatorConfig(recorder)
	if err != nil {
		return err
	}
	alloc, err := allocator.NewAllocator(strategy, allocatorConfig)
	if err != nil {
		return err
	}

	plan, err := alloc.Allocate(ctx, resources, projects)
	if err != nil {
		return fmt.Errorf("allocation failed: %w", err)
	}

	if err := report.Summarize(resources, projects, plan).WriteYAML(stdout); err != nil {
		return err
	}

	if cfg.Metrics.Dump {
		return dumpMetrics(stdout, registry)
	}
	return nil
}

// dumpMetrics writes every metric family of g in text exposition format.
func dumpMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	if _, err := fmt.Fprintln(w, "---"); err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
