package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, state := range []string{"done", "failed", "cancelled"} {
		PipelineRunsTotal.WithLabelValues(state)
	}

	for _, outcome := range []string{"skipped", "saved", "no_faces", "decode_error", "detect_error", "transform_error", "save_error", "cancelled"} {
		PipelineImagesTotal.WithLabelValues(outcome)
	}

	for _, stage := range []string{"decode", "detect", "annotate", "thumbnail", "save"} {
		PipelineStageDuration.WithLabelValues(stage)
	}

	for _, result := range []string{"hit", "miss"} {
		BitmapPoolRequests.WithLabelValues(result)
	}

	for _, backend := range []string{"http", "goface"} {
		DetectorRequestDuration.WithLabelValues(backend, "success")
		DetectorRequestDuration.WithLabelValues(backend, "error")
	}

	for _, format := range []string{"png", "jpg"} {
		ThumbnailWritesTotal.WithLabelValues(format, "success")
		ThumbnailWritesTotal.WithLabelValues(format, "error")
	}

	for _, status := range []string{"success", "error"} {
		GalleryPageLoads.WithLabelValues(status)
		FaceTagsSaved.WithLabelValues(status)
	}

	volumes := []string{"photos", "cache", "database", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "write"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "upsert_photo", "delete_missing_photos", "list_photos",
		"existing_media_ids", "batch_insert_media", "get_media", "paged_media", "delete_media",
		"upsert_face", "faces_for_media", "count_media", "count_faces", "count_photos"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}
}
