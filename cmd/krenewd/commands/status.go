package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/arenillas/krenewd/internal/cli/output"
	"github.com/arenillas/krenewd/pkg/ccache"
)

var (
	statusCache   string
	statusPidFile string
	statusOutput  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and ticket cache status",
	Long: `Display whether the renewal daemon is running and what the ticket cache
currently holds: the default principal and each credential's lifetime.

Examples:
  # Check the default cache and daemon
  krenewd status

  # Check a specific cache
  krenewd status --cache FILE:/tmp/krb5cc_1000

  # Output as JSON
  krenewd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusCache, "cache", "k", "", "Ticket cache to inspect (default: $KRB5CCNAME)")
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/krenewd/krenewd.pid)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// TicketInfo describes one credential in the cache.
type TicketInfo struct {
	Server     string `json:"server" yaml:"server"`
	IssuedAt   string `json:"issued_at" yaml:"issued_at"`
	ExpiresAt  string `json:"expires_at" yaml:"expires_at"`
	RenewUntil string `json:"renew_until,omitempty" yaml:"renew_until,omitempty"`
	Expired    bool   `json:"expired" yaml:"expired"`
}

// CacheStatus is the full status report.
type CacheStatus struct {
	DaemonRunning bool         `json:"daemon_running" yaml:"daemon_running"`
	DaemonPID     int          `json:"daemon_pid,omitempty" yaml:"daemon_pid,omitempty"`
	Cache         string       `json:"cache" yaml:"cache"`
	Principal     string       `json:"principal,omitempty" yaml:"principal,omitempty"`
	Tickets       []TicketInfo `json:"tickets,omitempty" yaml:"tickets,omitempty"`
	Error         string       `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	status := CacheStatus{
		Cache: ResolveCacheName(statusCache),
	}
	status.DaemonPID, status.DaemonRunning = readDaemonPid(pidPath)

	if err := fillCacheStatus(&status); err != nil {
		status.Error = err.Error()
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		return printStatusTable(status)
	}
}

// fillCacheStatus reads the ticket cache into the report.
func fillCacheStatus(status *CacheStatus) error {
	cache, err := ccache.Resolve(status.Cache)
	if err != nil {
		return err
	}
	cc, err := cache.Read()
	if err != nil {
		return err
	}
	status.Principal = cc.DefaultPrincipal.String()

	now := time.Now()
	for _, cred := range cc.Credentials {
		info := TicketInfo{
			Server:    cred.Server.String(),
			IssuedAt:  cred.AuthTime.Local().Format(time.RFC3339),
			ExpiresAt: cred.EndTime.Local().Format(time.RFC3339),
			Expired:   !cred.EndTime.After(now),
		}
		if !cred.RenewTill.IsZero() {
			info.RenewUntil = cred.RenewTill.Local().Format(time.RFC3339)
		}
		status.Tickets = append(status.Tickets, info)
	}
	return nil
}

func printStatusTable(status CacheStatus) error {
	daemon := "stopped"
	if status.DaemonRunning {
		daemon = fmt.Sprintf("running (PID %d)", status.DaemonPID)
	}

	pairs := [][2]string{
		{"Daemon", daemon},
		{"Cache", status.Cache},
	}
	if status.Principal != "" {
		pairs = append(pairs, [2]string{"Principal", status.Principal})
	}
	if err := output.SimpleTable(os.Stdout, pairs); err != nil {
		return err
	}

	if status.Error != "" {
		fmt.Printf("\n%s\n", status.Error)
		return nil
	}

	if len(status.Tickets) > 0 {
		fmt.Println()
		table := output.NewTableData("Server", "Issued", "Expires", "Renew Until")
		for _, ticket := range status.Tickets {
			expires := ticket.ExpiresAt
			if ticket.Expired {
				expires += " (expired)"
			}
			table.AddRow(ticket.Server, ticket.IssuedAt, expires, ticket.RenewUntil)
		}
		if err := output.PrintTable(os.Stdout, table); err != nil {
			return err
		}
	}
	return nil
}
