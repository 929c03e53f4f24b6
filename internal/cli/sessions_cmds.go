package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/halyard-dev/halyard/internal/config"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage remembered sessions",
		Long: `Remembered sessions are connections saved by the shell, with passwords
and keys stripped. They record the last remote and local directory so a
new shell can pick up where the old one left off.`,
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsForgetCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List remembered sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.SessionsPath()
			if err != nil {
				return err
			}
			known, err := config.LoadSessions(p)
			if err != nil {
				return err
			}
			if len(known) == 0 {
				fmt.Println("no remembered sessions")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBACKEND\tREMOTE\tLOCAL\tLAST USED")
			for _, rs := range known {
				kind := string(rs.Params.Kind)
				if rs.Params.SubKind != "" {
					kind = string(rs.Params.SubKind)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					rs.Name, kind, rs.RemotePath, rs.LocalPath,
					rs.LastUsed.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newSessionsForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <name>",
		Short: "Remove a remembered session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.SessionsPath()
			if err != nil {
				return err
			}
			known, err := config.LoadSessions(p)
			if err != nil {
				return err
			}
			pruned := config.Forget(known, args[0])
			if len(pruned) == len(known) {
				return fmt.Errorf("no remembered session %q", args[0])
			}
			return config.SaveSessions(p, pruned)
		},
	}
}
