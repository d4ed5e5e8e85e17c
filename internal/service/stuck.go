package service

import (
	"time"

	"spinarchive/archive-api/internal/store"

	"go.uber.org/zap"
)

// WatchStuckUploads periodically logs uploads that sat in Processing longer
// than maxAge, meaning the encoder never called back. There is no automatic
// retry, these are meant to be re-submitted by hand.
func WatchStuckUploads(tick, maxAge time.Duration, s *store.UploadStore) {
	ticker := time.NewTicker(tick)

	zap.L().Debug("Stuck upload watcher attached", zap.Duration("tick_every", tick))

	go func() {
		for range ticker.C {
			stuck, err := s.StuckProcessing(time.Now().Add(-maxAge))
			if err != nil {
				zap.L().Error("Failed to query for stuck uploads", zap.Error(err))
				continue
			}

			for _, u := range stuck {
				zap.L().Warn("Upload stuck in processing",
					zap.String("file_id", u.FileID),
					zap.String("encoding_key", u.EncodingKey),
					zap.Time("since", u.UpdatedAt),
				)
			}
		}
	}()
}
