package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"delegate/api/internal/app"
)

type accountOp func(ctx context.Context, id, ref string) (app.Account, error)

func accountCommand(use, short string, pick func(*app.Service) accountOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " KEY",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := wallet()
			if err != nil {
				return err
			}
			if id == "" {
				return fmt.Errorf("--wallet required")
			}
			return withService(cmd.Context(), func(svc *app.Service) error {
				acct, err := pick(svc)(cmd.Context(), id, args[0])
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, acct)
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(
		accountCommand("subscribe", "Follow a DAO", func(s *app.Service) accountOp { return s.Subscribe }),
		accountCommand("unsubscribe", "Stop following a DAO", func(s *app.Service) accountOp { return s.Unsubscribe }),
	)

	agentCmd := &cobra.Command{Use: "agent", Short: "Automated participation"}
	agentCmd.AddCommand(
		accountCommand("start", "Start the agent for a DAO", func(s *app.Service) accountOp { return s.StartAgent }),
		accountCommand("stop", "Stop the agent for a DAO", func(s *app.Service) accountOp { return s.StopAgent }),
	)
	rootCmd.AddCommand(agentCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "account",
		Short: "Show the preferences of --wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := wallet()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(svc *app.Service) error {
				acct, err := svc.Account(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, acct)
			})
		},
	})

	ethosCmd := &cobra.Command{Use: "ethos", Short: "Voting principles used for suggestions"}
	ethosCmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the saved ethos",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := wallet()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(svc *app.Service) error {
				acct, err := svc.Account(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, acct.Ethos)
				return nil
			})
		},
	})

	var preset string
	setCmd := &cobra.Command{
		Use:   "set [TEXT]",
		Short: "Save an ethos statement or a preset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && preset == "" {
				return fmt.Errorf("TEXT or --preset required")
			}
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			id, err := wallet()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(svc *app.Service) error {
				acct, err := svc.SetEthos(cmd.Context(), id, text, preset)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, acct)
			})
		},
	}
	setCmd.Flags().StringVarP(&preset, "preset", "p", "", "Preset title, e.g. \"Pragmatic Reformer\"")
	ethosCmd.AddCommand(setCmd)

	ethosCmd.AddCommand(&cobra.Command{
		Use:   "presets",
		Short: "List ethos presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *app.Service) error {
				return printJSON(os.Stdout, svc.EthosPresets())
			})
		},
	})
	rootCmd.AddCommand(ethosCmd)
}
