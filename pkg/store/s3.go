package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Persister.
// *s3.Client satisfies it.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Persister keeps snapshots as objects in an S3 bucket.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "eu-west-1", Credentials: creds})
//	p := store.NewS3Persister(client, "my-bucket", "reactor/")
//	err := st.Save(ctx, p, "nightly")
type S3Persister struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Persister creates a persister writing to bucket under prefix.
func NewS3Persister(client S3API, bucket, prefix string) *S3Persister {
	return &S3Persister{client: client, bucket: bucket, prefix: prefix}
}

// Save uploads data as <prefix><name>.snapshot.pb.
func (p *S3Persister) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(p.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/x-protobuf"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", p.key(name), err)
	}
	return nil
}

// Load downloads the snapshot object for name.
func (p *S3Persister) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return nil, fmt.Errorf("s3 get %s: %w", p.key(name), err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func (p *S3Persister) key(name string) string {
	return p.prefix + name + snapshotExt
}
