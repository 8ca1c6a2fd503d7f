package main

//
// Session history
//

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexshd/rheobench/internal/artifact"
)

func sessionsSubcommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded analysis sessions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			sessions, err := s.List(ctx, limit)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tCREATED\tNAME\tCORRECTION\tMODEL\tR²\tPOINTS\t")
			for _, sess := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.6f\t%d\t\n",
					sess.ID, sess.CreatedAt.Local().Format(time.DateTime), sess.Name,
					sess.CorrectionType, sess.BestModel, sess.RSquared, sess.PointCount)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sessions to list (0 for all)")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a session and its model record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			sess, err := s.Get(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			bold.Fprintf(out, "Session %s\n", sess.ID)
			fmt.Fprintf(out, "  name:       %s\n", sess.Name)
			fmt.Fprintf(out, "  created:    %s\n", sess.CreatedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "  correction: %s\n", sess.CorrectionType)
			fmt.Fprintf(out, "  datasets:   %s\n", strings.Join(sess.Datasets, ", "))
			for _, f := range sess.Failures {
				warn.Fprintf(out, "  skipped %s\n", f)
			}
			if sess.Model == nil {
				return nil
			}
			return artifact.WriteJSON(out, sess.Model)
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a session; its calibrations are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Delete(ctx, args[0])
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}
