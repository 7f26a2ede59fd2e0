package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"rpmt/database"
	"rpmt/models"

	"github.com/spf13/cobra"
)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "rpmtctl",
		Short:         "Administration tool for the research publication tracker",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newMigrateCmd(open),
		newUserCmd(open),
		newSweepCmd(open),
		newOutboxCmd(open),
	)
	return root
}

// withApp öffnet die Anwendung für die Dauer von fn.
func withApp(ctx context.Context, open opener, withStore bool, fn func(a *app) error) error {
	a, err := open(ctx, withStore)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), open, false, func(a *app) error {
				if err := database.Migrate(a.DB); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
				return nil
			})
		},
	}
}

func newUserCmd(open opener) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	addCmd := &cobra.Command{
		Use:   "add <username> <email> <password> <role>",
		Short: "Create a user account",
		Long: `Create a user account with the given role.

Roles: Faculty, Chair, Admin, Dev (case-insensitive).`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := models.ParseRole(args[3])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), open, false, func(a *app) error {
				u, err := a.Users.Create(cmd.Context(), args[0], args[1], args[2], role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d, role %s)\n", u.Username, u.ID, u.Role)
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), open, false, func(a *app) error {
				users, err := a.Users.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE")
				for _, u := range users {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.Role)
				}
				return w.Flush()
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user account without projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), open, false, func(a *app) error {
				if err := a.Users.DeleteByUsername(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", args[0])
				return nil
			})
		},
	}

	userCmd.AddCommand(addCmd, listCmd, deleteCmd)
	return userCmd
}

func newSweepCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove authors and editors without projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), open, false, func(a *app) error {
				res, err := a.Sweeper.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d authors and %d editors.\n", res.Authors, res.Editors)
				return nil
			})
		},
	}
}

func newOutboxCmd(open opener) *cobra.Command {
	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and process pending storage deletions",
	}

	var limit int
	drainCmd := &cobra.Command{
		Use:   "drain",
		Short: "Delete queued storage objects now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), open, true, func(a *app) error {
				n, err := a.Outbox.Drain(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d objects.\n", n)
				return nil
			})
		},
	}
	drainCmd.Flags().IntVar(&limit, "limit", 100, "maximum number of objects to delete")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pending storage deletions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), open, true, func(a *app) error {
				pending, err := a.Outbox.Pending(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tATTEMPTS\tLAST ERROR")
				for _, p := range pending {
					fmt.Fprintf(w, "%s\t%d\t%s\n", p.ObjectKey, p.Attempts, p.LastError)
				}
				return w.Flush()
			})
		},
	}

	outboxCmd.AddCommand(drainCmd, listCmd)
	return outboxCmd
}
