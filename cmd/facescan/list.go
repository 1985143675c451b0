package main

import (
	"fmt"
	"text/tabwriter"

	"face-gallery/internal/gallery"

	"github.com/spf13/cobra"
)

func newListCmd(opts *options) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one gallery page of processed photos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if page < 0 {
				return fmt.Errorf("--page must not be negative")
			}

			stores, err := opts.openStores(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()

			source := gallery.NewPagingSource(stores.Store, opts.cfg.GalleryPageSize)
			result := source.Load(cmd.Context(), gallery.LoadParams{Key: &page, PageSize: source.PageSize()})
			if result.Err != nil {
				return result.Err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTHUMBNAIL")
			for _, item := range result.Items {
				fmt.Fprintf(w, "%d\t%s\n", item.ID, item.ThumbnailLocation)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "page %d", page)
			if result.PrevKey != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  prev: %d", *result.PrevKey)
			}
			if result.NextKey != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  next: %d", *result.NextKey)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "page number, starting at 0")
	return cmd
}
