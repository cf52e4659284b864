package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/sidd/internal/render"
	"github.com/abhisek/sidd/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved schemes",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		recs, err := s.Schemes().List(cmd.Context())
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No schemes saved.")
			return nil
		}

		rows := make([][]string, 0, len(recs))
		for _, r := range recs {
			rows = append(rows, []string{
				r.Name,
				r.Taxonomy,
				strconv.Itoa(r.Zones),
				r.UpdatedAt.Local().Format(time.DateTime),
			})
		}
		printStyled(render.Table(theme(cmd), []string{"Name", "Taxonomy", "Zones", "Updated"}, rows))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [NAME]",
	Short: "Show recent scheme operations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		var name string
		if len(args) == 1 {
			name = args[0]
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.History().Query(cmd.Context(), name, limit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events found.")
			return nil
		}

		rows := make([][]string, 0, len(events))
		for _, e := range events {
			rows = append(rows, []string{
				e.Timestamp.Local().Format(time.DateTime),
				e.Scheme,
				e.Action,
				strconv.Itoa(e.Cases),
				strconv.Itoa(e.Skipped),
				e.Detail,
			})
		}
		printStyled(render.Table(theme(cmd), []string{"Time", "Scheme", "Action", "Cases", "Skipped", "Detail"}, rows))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a saved scheme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Schemes().Delete(ctx, args[0]); err != nil {
			return err
		}
		if err := s.History().Append(ctx, store.Event{Scheme: args[0], Action: store.ActionDelete}); err != nil {
			return err
		}
		fmt.Printf("Deleted scheme %q\n", args[0])
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of events to show (0 = all)")
}
