package main

import (
	"errors"
	"fmt"
	"strconv"

	"face-gallery/internal/database"
	"face-gallery/internal/gallery"

	"github.com/spf13/cobra"
)

func newTagCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <mediaId> <faceKey> <tag>",
		Short: "Tag a detected face",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid media id %q", args[0])
			}

			stores, err := opts.openStores(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()

			err = gallery.NewTagger(stores.Store).SaveFaceTag(cmd.Context(), id, args[1], args[2])
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("media %d has not been processed", id)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Face %s of media %d tagged %q\n", args[1], id, args[2])
			return nil
		},
	}
}
