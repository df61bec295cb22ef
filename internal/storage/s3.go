// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Scheme prefixes status URLs that live in an S3 bucket.
const S3Scheme = "s3://"

// ObjectGetter is the part of the S3 client the backend needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 reads blobs addressed as s3://bucket/key. It never writes.
type S3 struct {
	client ObjectGetter
}

// NewS3 returns an S3 reader using the default AWS credential chain. A
// non-empty endpoint points the client at an S3-compatible service with
// path-style addressing.
func NewS3(ctx context.Context, endpoint string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewS3WithClient(client), nil
}

// NewS3WithClient returns an S3 reader backed by client.
func NewS3WithClient(client ObjectGetter) *S3 {
	return &S3{client: client}
}

// Get downloads the object at url.
func (s *S3) Get(ctx context.Context, url string) ([]byte, error) {
	bucket, key, err := splitS3URL(url)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nsb *types.NoSuchBucket
		if errors.As(err, &nsk) || errors.As(err, &nsb) {
			return nil, fmt.Errorf("get %s: %w", url, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

func splitS3URL(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, S3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", url)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url %q needs a bucket and a key: %w", url, ErrNotFound)
	}
	return bucket, key, nil
}

// Router sends s3:// URLs to an S3 reader and everything else to a
// fallback, usually File.
type Router struct {
	S3       Storage
	Fallback Storage
}

// Get dispatches url by scheme. s3:// URLs fail with ErrNotFound when no S3
// reader is configured.
func (r *Router) Get(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, S3Scheme) {
		if r.S3 == nil {
			return nil, fmt.Errorf("%s: s3 storage not enabled: %w", url, ErrNotFound)
		}
		return r.S3.Get(ctx, url)
	}
	return r.Fallback.Get(ctx, url)
}
