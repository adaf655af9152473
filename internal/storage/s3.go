// Package storage keeps uploaded documents and network snapshots in an
// S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Bucket is one bucket of an S3-compatible object store.
type Bucket struct {
	client *s3.Client
	name   string
	public string
}

// NewBucketParams configures a Bucket. PublicEndpoint is the externally
// reachable endpoint used for presigned links; it may be empty.
type NewBucketParams struct {
	Region         string
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
}

func NewBucket(ctx context.Context, params NewBucketParams) (*Bucket, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("no bucket configured")
	}
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(params.Region),
		config.WithBaseEndpoint(params.Endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &Bucket{client: client, name: params.Bucket, public: params.PublicEndpoint}, nil
}

func (b *Bucket) Client() *s3.Client {
	return b.client
}

func (b *Bucket) Name() string {
	return b.name
}

// DocumentKey is the object key of an uploaded document of a template.
func DocumentKey(template, id, name string) string {
	ext := path.Ext(name)
	if ext == "" {
		ext = ".html"
	}
	return fmt.Sprintf("templates/%s/documents/%s%s", template, id, strings.ToLower(ext))
}

// SnapshotKey is the object key of an encoded basis network.
func SnapshotKey(template, hash string) string {
	return fmt.Sprintf("templates/%s/networks/%s.json", template, hash)
}

func contentType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (b *Bucket) GetFile(ctx context.Context, key string) ([]byte, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get file from S3: %w", err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Bucket) PutFile(ctx context.Context, key string, file io.Reader) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return nil
}

// GenerateDownloadLink presigns a GET of key against the public endpoint.
// The link expires after 15 minutes.
func (b *Bucket) GenerateDownloadLink(ctx context.Context, key string) (string, error) {
	publicURL, err := url.Parse(b.public)
	if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
		return "", fmt.Errorf("invalid public endpoint: %q", b.public)
	}
	prefix := strings.TrimSuffix(publicURL.Path, "/")
	publicBaseEndpoint := fmt.Sprintf("%s://%s", publicURL.Scheme, publicURL.Host)

	// sign for the public host, the Host header has to match
	presignClient := s3.NewFromConfig(
		aws.Config{
			Region:      b.client.Options().Region,
			Credentials: b.client.Options().Credentials,
			HTTPClient:  b.client.Options().HTTPClient,
		},
		func(o *s3.Options) {
			o.BaseEndpoint = aws.String(publicBaseEndpoint)
			o.UsePathStyle = true
		},
	)

	out, err := s3.NewPresignClient(presignClient).PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(b.name),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(15*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}

	if prefix == "" {
		return out.URL, nil
	}
	signedURL, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	signedURL.Path = prefix + signedURL.Path
	return signedURL.String(), nil
}

// ListFilesWithPrefix returns all keys below prefix.
func (b *Bucket) ListFilesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.name),
		Prefix: aws.String(prefix),
	}

	for {
		out, err := b.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return keys, nil
		}
		input.ContinuationToken = out.NextContinuationToken
	}
}

// DeleteFolder removes every object below prefix.
func (b *Bucket) DeleteFolder(ctx context.Context, prefix string) error {
	keys, err := b.ListFilesWithPrefix(ctx, prefix)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += 1000 {
		end := min(start+1000, len(keys))
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}
		_, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.name),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects in folder %s: %w", prefix, err)
		}
	}
	return nil
}
