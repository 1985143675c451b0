package main

import (
	"fmt"
	"time"

	"face-gallery/internal/indexer"

	"github.com/spf13/cobra"
)

func newIndexCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the photo index from the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stores, err := opts.openStores(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()

			res, err := indexer.New(stores.Index, opts.cfg.PhotoDir, 0).Index(cmd.Context())
			if err != nil {
				return err
			}

			matching, err := stores.Index.CountMatchingPhotos(cmd.Context(), opts.cfg.CameraFilter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d photos (%d under %s, %d removed) in %v\n",
				res.Photos, matching, opts.cfg.CameraFilter, res.Removed, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
