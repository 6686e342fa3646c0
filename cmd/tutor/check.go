package main

import (
	"fmt"

	"github.com/dkeye/Tutor/internal/config"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/spf13/cobra"
)

func newCheckConfigCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print the resolved role layout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			rc, err := cfg.RoleConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "role: %s (peer %s)\n", rc.Role, rc.Role.Peer())
			for _, p := range domain.Purposes {
				if uid, ok := rc.Local[p]; ok {
					fmt.Fprintf(out, "  local  %-12s %d\n", p, uid)
				}
			}
			for _, p := range domain.Purposes {
				if uid, ok := rc.Peer[p]; ok {
					fmt.Fprintf(out, "  peer   %-12s %d\n", p, uid)
				}
			}
			fmt.Fprintf(out, "listen: %s\n", cfg.Addr())
			return nil
		},
	}
}
