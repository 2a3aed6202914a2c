package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func statsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print visit statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "persons:          %d\n", s.TotalPersons)
			fmt.Fprintf(out, "visits:           %d\n", s.TotalVisits)
			fmt.Fprintf(out, "visits today:     %d\n", s.VisitsToday)
			fmt.Fprintf(out, "unknown visitors: %d\n", s.UnknownVisitors)
			if s.MostFrequentVisitor.Name != nil {
				fmt.Fprintf(out, "most frequent:    %s (%d)\n", *s.MostFrequentVisitor.Name, s.MostFrequentVisitor.Count)
			}
			return nil
		},
	}
}

func configCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets removed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(a.cfg.Redacted())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
