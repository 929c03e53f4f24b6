package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/halyard-dev/halyard/internal/config"
	"github.com/halyard-dev/halyard/internal/overwrite"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change persisted settings",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := loadSettings()
			fmt.Printf("overwrite_policy: %s\n", s.OverwritePolicy)
			fmt.Printf("show_hidden_files: %v\n", s.ShowHiddenFiles)
			fmt.Printf("proxy.mode: %s\n", s.Proxy.Mode)
			if s.Proxy.Host != "" {
				fmt.Printf("proxy.host: %s\n", s.Proxy.Host)
				fmt.Printf("proxy.port: %d\n", s.Proxy.Port)
			}
			if s.Proxy.User != "" {
				fmt.Printf("proxy.user: %s\n", s.Proxy.User)
			}
			if s.Proxy.NoProxy != "" {
				fmt.Printf("proxy.no_proxy: %s\n", s.Proxy.NoProxy)
			}
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long: `Change one setting and persist it. Keys:

  overwrite_policy    ask, always_overwrite, always_skip, always_rename,
                      overwrite_if_newer, overwrite_if_different,
                      skip_if_identical
  show_hidden_files   true or false
  proxy.mode          no-proxy, system, basic, ntlm
  proxy.host          proxy host name
  proxy.port          proxy port
  proxy.user          proxy user (password is prompted at startup)
  proxy.no_proxy      comma-separated bypass list`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			s := loadSettings()

			switch key {
			case "overwrite_policy":
				p, err := overwrite.ParsePolicy(value)
				if err != nil {
					return err
				}
				s.OverwritePolicy = string(p)
			case "show_hidden_files":
				b, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("show_hidden_files wants true or false")
				}
				s.ShowHiddenFiles = b
			case "proxy.mode":
				s.Proxy.Mode = value
			case "proxy.host":
				s.Proxy.Host = value
			case "proxy.port":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("proxy.port wants a number")
				}
				s.Proxy.Port = n
			case "proxy.user":
				s.Proxy.User = value
			case "proxy.no_proxy":
				s.Proxy.NoProxy = value
			default:
				return fmt.Errorf("unknown setting %q", key)
			}

			if err := s.Validate(); err != nil {
				return err
			}
			if _, err := config.EnsureDirectory(); err != nil {
				return err
			}
			p, err := config.SettingsPath()
			if err != nil {
				return err
			}
			return s.Save(p)
		},
	}
}
