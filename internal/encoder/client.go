// Package encoder integrates with the third-party video encoding service.
package encoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"spinarchive/archive-api/model"

	"github.com/spf13/viper"
)

// EventJobCompleted is the webhook event the provider sends once every
// output of a job has been produced.
const EventJobCompleted = "job.completed"

var (
	// ErrUnavailable means the provider could not be reached at all
	// (transport error or timeout)
	ErrUnavailable = errors.New("encoding provider unavailable")

	// ErrRejected means the provider answered but refused the job or
	// returned something we could not parse
	ErrRejected = errors.New("encoding provider rejected the job")
)

// Job is one request/response exchange with the provider. The same shape
// comes back later in webhook callbacks.
type Job struct {
	ID         int64           `json:"id"`
	Event      string          `json:"event,omitempty"`
	Status     string          `json:"status,omitempty"`
	Progress   string          `json:"progress,omitempty"`
	Errors     json.RawMessage `json:"errors,omitempty"`
	OutputURLs json.RawMessage `json:"output_urls,omitempty"`
}

type Client struct {
	HTTPC *http.Client

	Endpoint    string
	APIKey      string
	WebhookBase string

	// Output destination. Credentials go to the provider inside the job
	// config so it can write results back into our bucket
	Bucket          string
	StorageHost     string
	AccessKeyID     string
	SecretAccessKey string

	AssetHost     string
	UploadFolder  string
	EncodedFolder string
	ThumbFolder   string
}

func NewClient() *Client {
	return &Client{
		HTTPC: &http.Client{
			// Bounded so a slow provider can never hang a finalize call
			Timeout: viper.GetDuration("encoder.timeout"),
		},
		Endpoint:        viper.GetString("encoder.endpoint"),
		APIKey:          viper.GetString("encoder.api_key"),
		WebhookBase:     viper.GetString("encoder.webhook_base"),
		Bucket:          viper.GetString("aws.bucket"),
		StorageHost:     viper.GetString("aws.endpoint"),
		AccessKeyID:     viper.GetString("aws.access_key_id"),
		SecretAccessKey: viper.GetString("aws.secret_access_key"),
		AssetHost:       viper.GetString("aws.asset_host"),
		UploadFolder:    viper.GetString("aws.upload_folder"),
		EncodedFolder:   viper.GetString("aws.encoded_folder"),
		ThumbFolder:     viper.GetString("aws.thumbnail_folder"),
	}
}

// Submit describes the desired outputs to the provider and parses its
// synchronous acceptance response. The webhook URL embeds the upload's
// correlation key, which is the only thing later used to match the
// asynchronous callback back to the upload. The provider's own job id is
// useless for that: it doesn't exist until this call returns, and the call
// may time out after the job was already accepted.
func (c *Client) Submit(ctx context.Context, u *model.Upload) (*Job, error) {
	source := u.SourceURL(c.AssetHost, c.UploadFolder)
	webhookURL := fmt.Sprintf("%s?key=%s", c.WebhookBase, u.EncodingKey)
	outputName := u.FileID + ".mp4"

	config := strings.Join([]string{
		fmt.Sprintf("set source = %s", source),
		fmt.Sprintf("set webhook = %s", webhookURL),
		fmt.Sprintf("-> mp4 = %s, keep=video_bitrate,audio_bitrate, if=$source_video_bitrate <= 8000", c.outputURL(c.EncodedFolder, outputName)),
		fmt.Sprintf("-> mp4::quality=4 = %s, keep=audio_bitrate, if=$source_video_bitrate > 8000", c.outputURL(c.EncodedFolder, outputName)),
		fmt.Sprintf("-> jpg:300x = %s", c.outputURL(c.ThumbFolder, u.FileID+".jpg")),
	}, "\n")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, strings.NewReader(config))
	if err != nil {
		return nil, fmt.Errorf("failed to build job request, %w", err)
	}
	req.SetBasicAuth(c.APIKey, "")

	resp, err := c.HTTPC.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w, %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w, status %d", ErrRejected, resp.StatusCode)
	}

	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("%w, bad response body, %v", ErrRejected, err)
	}

	return &job, nil
}

// outputURL builds an s3:// destination the provider writes results to.
func (c *Client) outputURL(prefix, fileName string) string {
	return fmt.Sprintf("s3://%s:%s@%s/%s/%s?host=%s",
		c.AccessKeyID, c.SecretAccessKey, c.Bucket, prefix, fileName, c.StorageHost)
}
