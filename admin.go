/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"

	"github.com/Seednode/escaperoom/internal/session"
	"github.com/spf13/cobra"
)

func newSessionCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage game sessions.",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(newSessionCreateCmd(cfg), newSessionOpenCmd(cfg))

	return cmd
}

func newSessionCreateCmd(cfg *Config) *cobra.Command {
	var (
		name   string
		mode   string
		closed bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session and print its key.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg.database)
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.CreateSession(cmd.Context(), session.Record{
				Name: name,
				Mode: session.Mode(mode),
				Open: !closed,
			})
			if err != nil {
				return err
			}

			cfg.logger.Debug().Str("session", record.Key).Str("mode", string(record.Mode)).Msg("session created")

			_, err = fmt.Fprintln(cmd.OutOrStdout(), record.Key)
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&name, "name", "", "display name of the session")
	fs.StringVar(&mode, "mode", string(session.ModeCollaborators), "game mode (collaborators or escape)")
	fs.BoolVar(&closed, "closed", false, "keep players out until the session is opened")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newSessionOpenCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "open <key>",
		Short: "Allow players to join a session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg.database)
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.UpdateSession(cmd.Context(), args[0], session.Update{Open: session.Ptr(true)})
			if err != nil {
				return err
			}

			cfg.logger.Debug().Str("session", record.Key).Msg("session opened")

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is open\n", record.Key)
			return err
		},
	}
}
