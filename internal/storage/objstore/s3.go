// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// S3 reads from a single bucket via the AWS SDK. R2 and other
// S3-compatible stores work through a custom endpoint resolver on the
// provided options.
type S3 struct {
	bucket string
	client *s3.Client
}

var _ Store = (*S3)(nil)

// NewS3 builds a bucket-rooted store from static temporary
// credentials, the shape vended by the credential resolver.
func NewS3(
	ctx context.Context,
	bucket, region, accessKeyID, secretAccessKey, sessionToken string,
) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure S3 client")
	}
	return &S3{bucket: bucket, client: s3.NewFromConfig(cfg)}, nil
}

// List implements [Store].
func (s *S3) List(ctx context.Context, prefix string) ([]ObjectMeta, error) {
	var ret []ObjectMeta
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "could not list s3://%s/%s", s.bucket, prefix)
		}
		for _, obj := range page.Contents {
			meta := ObjectMeta{Path: aws.ToString(obj.Key)}
			if obj.Size != nil {
				meta.Size = *obj.Size
			}
			if obj.LastModified != nil {
				meta.LastModified = obj.LastModified.UTC()
			}
			ret = append(ret, meta)
		}
	}
	return ret, nil
}

// Get implements [Store].
func (s *S3) Get(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not read s3://%s/%s", s.bucket, path)
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}
