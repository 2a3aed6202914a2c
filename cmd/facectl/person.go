package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/internal/vision"
)

func personCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Manage enrolled persons",
	}
	cmd.AddCommand(personAddCommand(a), personListCommand(a), personDeleteCommand(a))
	return cmd
}

func personAddCommand(a *app) *cobra.Command {
	var name, imagePath, notes string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enroll a person from a photo with exactly one face",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("--name must not be empty")
			}
			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			rec, err := vision.New(a.cfg.Recognition)
			if err != nil {
				return fmt.Errorf("load recognizer: %w", err)
			}
			defer rec.Close()

			embedding, err := vision.EmbedSingle(rec, data, false)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			person, err := store.CreatePerson(ctx, name, notes, embedding)
			if err != nil {
				return err
			}

			images, err := storage.OpenImages(ctx, a.cfg.Storage)
			if err == nil {
				err = images.Save(ctx, storage.ImageName(time.Now(), name), data)
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: enrollment photo not saved: %v\n", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "enrolled %s (id %d)\n", person.Name, person.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "person name (unique)")
	cmd.Flags().StringVar(&imagePath, "image", "", "photo containing exactly one face")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func personListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List enrolled persons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			persons, err := store.ListPersons(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tVISITS\tLAST SEEN\tNOTES")
			for _, p := range persons {
				lastSeen := "-"
				if !p.LastSeen.IsZero() {
					lastSeen = p.LastSeen.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", p.ID, p.Name, p.VisitCount, lastSeen, p.Notes)
			}
			return tw.Flush()
		},
	}
}

func personDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a person and their visits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeletePerson(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete person %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted person %d\n", id)
			return nil
		},
	}
}
