// Package notifier pushes Discord notifications about upload activity.
// Delivery is fire-and-forget: events go through a buffered channel to a
// background worker, so a slow or dead webhook can never stall the upload
// pipeline.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"spinarchive/archive-api/model"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type EventKind int

const (
	// EventUploadPublished fires when an upload finishes encoding and
	// goes live
	EventUploadPublished EventKind = iota

	// EventUploadPendingApproval fires when a limited user's upload
	// lands in the moderation queue
	EventUploadPendingApproval
)

type Event struct {
	Kind     EventKind
	Upload   model.Upload
	Uploader model.User
}

type Notifier struct {
	HTTPC *http.Client

	WebhookURL            string
	ContributorWebhookURL string
	SiteBase              string

	events chan Event
	done   chan struct{}
}

func New() *Notifier {
	return &Notifier{
		HTTPC:                 &http.Client{Timeout: 10 * time.Second},
		WebhookURL:            viper.GetString("notify.webhook_url"),
		ContributorWebhookURL: viper.GetString("notify.contributor_webhook_url"),
		SiteBase:              fmt.Sprintf("https://%s", viper.GetString("host.domain")),
		events:                make(chan Event, 64),
		done:                  make(chan struct{}),
	}
}

// Start attaches the delivery worker.
func (n *Notifier) Start() {
	go func() {
		defer close(n.done)

		for ev := range n.events {
			if err := n.deliver(ev); err != nil {
				zap.L().Warn("Failed to deliver notification",
					zap.String("file_id", ev.Upload.FileID),
					zap.Error(err),
				)
			}
		}
	}()
}

// Stop drains outstanding events and waits for the worker to exit.
func (n *Notifier) Stop() {
	close(n.events)
	<-n.done
}

// Publish enqueues an event without blocking. When the buffer is full the
// event is dropped, notifications are strictly best-effort.
func (n *Notifier) Publish(ev Event) {
	select {
	case n.events <- ev:
	default:
		zap.L().Warn("Notification queue full, dropping event",
			zap.String("file_id", ev.Upload.FileID),
		)
	}
}

func (n *Notifier) deliver(ev Event) error {
	var url, title string

	switch ev.Kind {
	case EventUploadPublished:
		url = n.WebhookURL
		title = "Uploaded a new video."
	case EventUploadPendingApproval:
		url = n.ContributorWebhookURL
		title = "Uploaded a video for approval."
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}

	if url == "" {
		return nil
	}

	thumbnail := ev.Upload.ThumbnailURL
	if thumbnail == "" {
		thumbnail = n.SiteBase + "/placeholder.jpg"
	}

	fileName := ev.Upload.FileName
	if fileName == "" {
		fileName = "No original file name."
	}

	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       title,
				"description": fmt.Sprintf("`%s`", fileName),
				"image":       map[string]any{"url": thumbnail},
				"footer":      map[string]any{"text": ev.Upload.TagString},
				"url":         fmt.Sprintf("%s/u/%s", n.SiteBase, ev.Upload.FileID),
				"color":       7506394,
				"author":      map[string]any{"name": ev.Uploader.Username},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := n.HTTPC.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook answered with status %d", resp.StatusCode)
	}

	return nil
}
