// File: cmd/check.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/trafficsim/internal/browser"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/device"
	"github.com/xkilldash9x/trafficsim/internal/observability"
)

const checkTimeout = 60 * time.Second

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Launches the browser and reports whether a blank page is healthy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			pacer := newPacer()

			b, err := newLauncher(cfg, pacer, logger).Launch(ctx, surface.LaunchOptions{
				Profile:  device.Select(device.Desktop, pacer),
				Headless: cfg.Browser.Headless,
				Proxy:    cfg.Network.Proxy.Address(),
			})
			if err != nil {
				return fmt.Errorf("failed to launch browser: %w", err)
			}
			defer b.Close(context.WithoutCancel(ctx))

			page, err := b.NewPage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open page: %w", err)
			}
			if err := page.Goto(ctx, "about:blank"); err != nil {
				return fmt.Errorf("failed to load blank page: %w", err)
			}

			report := browser.Health(ctx, page, pacer.Now())
			if err := writeResult(cmd.OutOrStdout(), "", report); err != nil {
				return err
			}
			if !report.Responsive {
				return fmt.Errorf("browser page is not responsive: %s", report.Error)
			}
			return nil
		},
	}
}
