package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/cf-ai-screenwriter-go/internal/services/continuity"
	"github.com/cf-ai-screenwriter-go/pkg/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		failOnError bool
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Run the continuity analyzer on a YAML or JSON script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes, err := loadScenes(args[0])
			if err != nil {
				return err
			}

			log, err := logger.NewLogger(&config.LoggingConfig{Level: logLevel, Format: "text", Output: "stderr"})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			report := continuity.NewAnalyzer(nil, log).Analyze(scenes)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}

			if failOnError && report.Status == continuity.StatusError {
				cmd.SilenceUsage = true
				return fmt.Errorf("continuity check failed with %d issue(s)", len(report.Issues))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit non-zero when the report status is error")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level")
	return cmd
}

type sceneFile struct {
	Scenes []models.Scene `yaml:"scenes"`
}

// loadScenes reads either a document with a top level scenes list or a bare
// list of scenes. JSON input parses as YAML.
func loadScenes(path string) ([]models.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc sceneFile
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc.Scenes, nil
	}

	var scenes []models.Scene
	if err := yaml.Unmarshal(data, &scenes); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return scenes, nil
}
