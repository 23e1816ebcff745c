package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/arenillas/krenewd/internal/logger"
	"github.com/arenillas/krenewd/pkg/config"
	"github.com/arenillas/krenewd/pkg/keeper"
	"github.com/arenillas/krenewd/pkg/renew"
)

var (
	renewCache        string
	renewHappy        time.Duration
	renewVerbose      bool
	renewIgnoreErrors bool
)

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Renew the ticket once and exit",
	Long: `Renew the ticket cache's ticket-granting ticket once and exit.

With --happy, the ticket is only renewed when its remaining lifetime has
dropped below the given window; a still-healthy ticket exits 0 without
contacting the KDC. This makes the command cheap to run from cron.

Examples:
  # Renew the default ticket cache now
  krenewd renew

  # Renew only when less than 4 hours of lifetime remain
  krenewd renew --happy 4h

  # Renew a specific cache
  krenewd renew --cache FILE:/tmp/krb5cc_1000`,
	RunE: runRenew,
}

func init() {
	renewCmd.Flags().StringVarP(&renewCache, "cache", "k", "", "Ticket cache to renew (default: $KRB5CCNAME)")
	renewCmd.Flags().DurationVarP(&renewHappy, "happy", "H", 0, "Only renew when remaining lifetime is below this window")
	renewCmd.Flags().BoolVarP(&renewVerbose, "verbose", "v", false, "Log the renewal attempt")
	renewCmd.Flags().BoolVarP(&renewIgnoreErrors, "ignore-errors", "i", false, "Report unrenewable tickets as a normal error instead of terminating")
}

func runRenew(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("cache") {
		cfg.Renew.Cache = renewCache
	}
	if cmd.Flags().Changed("ignore-errors") {
		cfg.Renew.IgnoreErrors = renewIgnoreErrors
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Renew.Verbose = renewVerbose
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	krbConf, err := LoadKrb5Config(cfg.Renew.Krb5Conf)
	if err != nil {
		return err
	}

	cacheName := ResolveCacheName(cfg.Renew.Cache)
	policy := &renew.Policy{
		CacheName:    cacheName,
		IgnoreErrors: cfg.Renew.IgnoreErrors,
		Verbose:      cfg.Renew.Verbose,
	}

	reason := renew.ReasonScheduled
	if renewHappy > 0 {
		var due bool
		reason, due = keeper.TicketStatus(cacheName, 0, renewHappy)
		if !due {
			if cfg.Renew.Verbose {
				logger.Info("ticket still within its happy window", logger.Cache(cacheName))
			}
			return nil
		}
	}

	eng := renew.New(renew.NewKDCRenewer(krbConf), renew.WithLogger(logger.Logger()))
	return eng.OnRenewalDue(context.Background(), policy, reason)
}
