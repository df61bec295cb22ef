// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	objects map[string]string
	err     error
	gets    []string
}

func (f *fakeBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	ref := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.gets = append(f.gets, ref)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[ref]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Get(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{"snapshots/default/home/diff.png": "DIFF"}}
	s := NewS3WithClient(bucket)

	data, err := s.Get(context.Background(), "s3://snapshots/default/home/diff.png")
	require.NoError(t, err)
	assert.Equal(t, "DIFF", string(data))
	assert.Equal(t, []string{"snapshots/default/home/diff.png"}, bucket.gets)
}

func TestS3GetErrors(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		err      error
		notFound bool
	}{
		{name: "missing key", url: "s3://snapshots/none.png", notFound: true},
		{name: "missing bucket", url: "s3://nobucket/x.png", err: &types.NoSuchBucket{}, notFound: true},
		{name: "no key", url: "s3://snapshots", notFound: true},
		{name: "wrong scheme", url: "file:///x.png"},
		{name: "access denied", url: "s3://snapshots/x.png", err: errors.New("AccessDenied")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewS3WithClient(&fakeBucket{err: tt.err})
			_, err := s.Get(context.Background(), tt.url)
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))
		})
	}
}

func TestRouterDispatchesByScheme(t *testing.T) {
	root := t.TempDir()
	writeBlob(t, root, "a.html", "<p>a</p>")
	f, err := NewFile(root)
	require.NoError(t, err)

	bucket := &fakeBucket{objects: map[string]string{"snapshots/b.html": "<p>b</p>"}}
	r := &Router{S3: NewS3WithClient(bucket), Fallback: f}

	data, err := r.Get(context.Background(), "a.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p>", string(data))

	data, err = r.Get(context.Background(), "s3://snapshots/b.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>b</p>", string(data))

	_, err = (&Router{Fallback: f}).Get(context.Background(), "s3://snapshots/b.html")
	assert.ErrorIs(t, err, ErrNotFound)
}
