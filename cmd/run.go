// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/api/schemas"
	"github.com/xkilldash9x/trafficsim/internal/browser"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/config"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
	"github.com/xkilldash9x/trafficsim/internal/observability"
	"github.com/xkilldash9x/trafficsim/internal/session"
	"github.com/xkilldash9x/trafficsim/internal/store"
)

const storeTimeout = 15 * time.Second

// Swappable in tests.
var (
	newPacer = func() *humanoid.Pacer {
		return humanoid.NewPacer(humanoid.RealClock(), rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	newLauncher = func(cfg *config.Config, pacer *humanoid.Pacer, logger *zap.Logger) surface.Launcher {
		return browser.NewLauncher(cfg, pacer, logger)
	}
	saveResult = func(ctx context.Context, cfg *config.Config, res *schemas.SessionResult, logger *zap.Logger) error {
		s, closePool, err := store.Connect(ctx, cfg.Store.URL, logger)
		if err != nil {
			return err
		}
		defer closePool()
		return s.SaveSession(ctx, res)
	}
)

func newRunCmd() *cobra.Command {
	var campaignPath, output string

	runCmd := &cobra.Command{
		Use:   "run [urls...]",
		Short: "Runs one browsing session and prints its result as JSON",
		Long: `Runs one browsing session against the given URLs, or the URLs of the
campaign file and configuration when none are given. The session result is
written as JSON to stdout or to --output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			if campaignPath != "" {
				campaign, err := config.LoadCampaign(campaignPath)
				if err != nil {
					return err
				}
				campaign.Apply(cfg)
			}
			if len(args) > 0 {
				cfg.Session.URLs = normalizeTargets(args)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			pacer := newPacer()
			orch := session.New(cfg, newLauncher(cfg, pacer, logger), logger, session.WithPacer(pacer))
			res := orch.Run(ctx)

			if cfg.Store.Enabled {
				storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
				if err := saveResult(storeCtx, cfg, &res, logger); err != nil {
					logger.Error("Failed to persist session result", zap.String("session_id", res.SessionID), zap.Error(err))
				}
				cancel()
			}

			if err := writeResult(cmd.OutOrStdout(), output, res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("session %s failed: %s", res.SessionID, res.Error)
			}
			return nil
		},
	}

	runCmd.Flags().StringVar(&campaignPath, "campaign", "", "campaign JSON file supplied by the host")
	runCmd.Flags().StringVarP(&output, "output", "o", "", "write the result to this file instead of stdout")
	return runCmd
}

// normalizeTargets adds an https scheme to targets given without one.
func normalizeTargets(args []string) []string {
	targets := make([]string, 0, len(args))
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if !strings.HasPrefix(a, "http://") && !strings.HasPrefix(a, "https://") {
			a = "https://" + a
		}
		targets = append(targets, a)
	}
	return targets
}

func writeResult(stdout io.Writer, output string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	if output == "" {
		_, err = stdout.Write(data)
		return err
	}
	path, err := homedir.Expand(output)
	if err != nil {
		return fmt.Errorf("failed to expand output path %q: %w", output, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}
