package backup

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectInfo is the subset of an S3 object listing this package needs.
type ObjectInfo struct {
	Key       string
	SizeBytes int64
}

// Uploader is the optional cloud-storage sink for exported analytics
// artifacts. A nil Uploader means artifacts stay local-only.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// S3Uploader is an Uploader backed by any S3-compatible object store
// (Cloudflare R2, MinIO, AWS S3 itself) reached through aws-sdk-go-v2.
type S3Uploader struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewS3Uploader builds an S3Uploader against the Cloudflare R2 endpoint
// for accountID (https://<accountID>.r2.cloudflarestorage.com), since R2
// is the concrete provider this is grounded on. accountID, the key pair
// and bucket are all required; there is no fallback to AWS's default
// endpoint resolution.
func NewS3Uploader(ctx context.Context, accountID, accessKeyID, secretAccessKey, bucket string) (*S3Uploader, error) {
	if accountID == "" || accessKeyID == "" || secretAccessKey == "" || bucket == "" {
		return nil, fmt.Errorf("s3 uploader: account id, access key, secret key and bucket are all required")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &S3Uploader{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (u *S3Uploader) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	out, err := u.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(u.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list %s*: %w", prefix, err)
	}

	objects := make([]ObjectInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		objects = append(objects, ObjectInfo{Key: *obj.Key, SizeBytes: size})
	}
	return objects, nil
}

func (u *S3Uploader) Delete(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
