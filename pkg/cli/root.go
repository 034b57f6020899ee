package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telekom/coco-policy/pkg/generate"
	"github.com/telekom/coco-policy/pkg/settings"
	"github.com/telekom/coco-policy/pkg/system"
	"github.com/telekom/coco-policy/pkg/workload"
)

// Config wires the command's environment, so tests can capture output.
type Config struct {
	OutputWriter io.Writer
}

func DefaultConfig() Config {
	return Config{OutputWriter: os.Stdout}
}

type runtimeState struct {
	yamlFile     string
	settingsFile string
	inPlace      bool
	debug        bool
	writer       io.Writer
}

// NewRootCommand builds the genpolicy command tree.
func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:           "genpolicy",
		Short:         "Compile a Kubernetes workload manifest into an embedded agent policy",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			return runGenerate(rt)
		},
	}

	root.Flags().StringVarP(&rt.yamlFile, "yaml-file", "y", "", "workload manifest to compile (required)")
	root.Flags().StringVarP(&rt.settingsFile, "settings-file", "j", "", "settings file path")
	root.Flags().BoolVarP(&rt.inPlace, "in-place", "i", false, "rewrite the manifest file instead of printing it")
	root.Flags().BoolVarP(&rt.debug, "debug", "d", false, "enable debug level logging")
	_ = root.MarkFlagRequired("yaml-file")

	root.AddCommand(newVersionCommand(rt))
	return root
}

func runGenerate(rt *runtimeState) error {
	logger, err := system.NewLogger(rt.debug)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	cfg, err := settings.Load(rt.settingsFile)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(rt.yamlFile)
	if err != nil {
		return fmt.Errorf("reading manifest %s: %w", rt.yamlFile, err)
	}

	resource, doc, err := workload.Parse(data)
	if err != nil {
		return err
	}
	if err := resource.Init(cfg, doc); err != nil {
		return err
	}
	log.Infow("compiling workload policy", "kind", resource.Kind(), "file", rt.yamlFile)

	policy, err := resource.GeneratePolicy(generate.New(log))
	if err != nil {
		return err
	}

	patched, err := resource.PatchAndSerialize(policy)
	if err != nil {
		return fmt.Errorf("patching manifest: %w", err)
	}

	if rt.inPlace {
		return os.WriteFile(rt.yamlFile, patched, 0o644)
	}
	_, err = rt.writer.Write(patched)
	return err
}
