package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignPut signs a time-limited PUT URL for `{folder}/{key}` so clients
// can upload straight to the bucket without ever seeing our credentials.
// Signing happens locally, no network call is made. Each call produces a
// fresh signature, signatures are never reused across object keys.
func (c *S3Client) PresignPut(ctx context.Context, folder, key string, expiry time.Duration) (string, error) {
	req, err := c.Presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(fmt.Sprintf("%s/%s", folder, key)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign put for %s/%s, %w", folder, key, err)
	}

	return req.URL, nil
}
