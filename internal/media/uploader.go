// Package media issues presigned S3 upload URLs for featured images and avatars.
// Clients upload directly to the bucket and then store the public URL on the post or user.
package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/config"
	"github.com/prn-tf/inkwell/internal/domain"
)

// Kind is the purpose of an upload. It becomes a key segment.
type Kind string

const (
	KindFeaturedImage Kind = "posts"
	KindAvatar        Kind = "avatars"
)

// allowedTypes maps accepted image content types to file extensions.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Upload is a presigned PUT the client performs itself.
type Upload struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Key       string            `json:"key"`
	PublicURL string            `json:"publicUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Uploader presigns uploads into one bucket.
type Uploader struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     config.S3MediaConfig
	logger  zerolog.Logger
}

// New creates an Uploader. Static credentials are used when configured, otherwise
// the default AWS credential chain.
func New(ctx context.Context, cfg config.S3MediaConfig, logger zerolog.Logger) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Uploader{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		logger:  logger.With().Str("component", "media").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// PresignUpload returns a presigned PUT for an image owned by owner.
func (u *Uploader) PresignUpload(ctx context.Context, kind Kind, owner domain.ID, contentType string) (*Upload, error) {
	ext, ok := allowedTypes[strings.ToLower(contentType)]
	if !ok {
		return nil, domain.Invalid("Upload", domain.Violation{Field: "contentType", Message: "must be a jpeg, png, gif or webp image"})
	}
	if kind != KindFeaturedImage && kind != KindAvatar {
		return nil, domain.Invalid("Upload", domain.Violation{Field: "kind", Message: "is not a known upload kind"})
	}

	key := path.Join(u.cfg.KeyPrefix, string(kind), owner.String(), uuid.NewString()+ext)
	expires := u.cfg.PresignExpiration

	req, err := u.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	headers := make(map[string]string, len(req.SignedHeader))
	for name, values := range req.SignedHeader {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	u.logger.Debug().Str("key", key).Str("owner", owner.String()).Msg("upload presigned")
	return &Upload{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   headers,
		Key:       key,
		PublicURL: u.PublicURL(key),
		ExpiresAt: time.Now().UTC().Add(expires),
	}, nil
}

// PublicURL is where an uploaded object is served from.
func (u *Uploader) PublicURL(key string) string {
	base := u.cfg.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", u.cfg.Bucket, u.cfg.Region)
	}
	return strings.TrimRight(base, "/") + "/" + key
}

// Ping checks that the bucket is reachable with the configured credentials.
func (u *Uploader) Ping(ctx context.Context) error {
	if _, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.cfg.Bucket)}); err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", u.cfg.Bucket, err)
	}
	return nil
}
