/*
 * Copyright 2024 The Labman Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cleaner

import (
	"context"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/pkg/errors"
)

// DeleteObjects accepts at most 1000 keys per call
const deleteBatchSize = 1000

// The subset of the S3 API bucket draining uses
type S3API interface {
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput,
		optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input,
		optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput,
		optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Deletes every object, version and delete marker in the bucket so
// CloudFormation can delete the bucket itself
func (c *Cleaner) DrainBucket(ctx context.Context, bucket string) error {
	log.Logger.Infof("Draining bucket '%s'...", bucket)

	deleted, err := c.drainVersions(ctx, bucket)
	if err != nil {
		return errors.WithStack(err)
	}

	// unversioned buckets report nothing from the versions API
	plain, err := c.drainObjects(ctx, bucket)
	if err != nil {
		return errors.WithStack(err)
	}

	log.Logger.Infof("Deleted %d object(s) from bucket '%s'", deleted+plain, bucket)

	return nil
}

func (c *Cleaner) drainVersions(ctx context.Context, bucket string) (int, error) {
	deleted := 0

	var keyMarker, versionMarker *string
	for {
		result, err := c.s3Api.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          awsv2.String(bucket),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionMarker,
		})
		if err != nil {
			return deleted, errors.Wrapf(err, "Error listing versions in bucket '%s'",
				bucket)
		}

		identifiers := make([]s3types.ObjectIdentifier, 0)
		for _, version := range result.Versions {
			identifiers = append(identifiers, s3types.ObjectIdentifier{
				Key:       version.Key,
				VersionId: version.VersionId,
			})
		}
		for _, marker := range result.DeleteMarkers {
			identifiers = append(identifiers, s3types.ObjectIdentifier{
				Key:       marker.Key,
				VersionId: marker.VersionId,
			})
		}

		count, err := c.deleteBatches(ctx, bucket, identifiers)
		deleted += count
		if err != nil {
			return deleted, errors.WithStack(err)
		}

		if !awsv2.ToBool(result.IsTruncated) {
			break
		}
		keyMarker = result.NextKeyMarker
		versionMarker = result.NextVersionIdMarker
	}

	return deleted, nil
}

func (c *Cleaner) drainObjects(ctx context.Context, bucket string) (int, error) {
	deleted := 0

	var continuation *string
	for {
		result, err := c.s3Api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            awsv2.String(bucket),
			ContinuationToken: continuation,
		})
		if err != nil {
			return deleted, errors.Wrapf(err, "Error listing objects in bucket '%s'",
				bucket)
		}

		identifiers := make([]s3types.ObjectIdentifier, 0)
		for _, object := range result.Contents {
			identifiers = append(identifiers, s3types.ObjectIdentifier{
				Key: object.Key,
			})
		}

		count, err := c.deleteBatches(ctx, bucket, identifiers)
		deleted += count
		if err != nil {
			return deleted, errors.WithStack(err)
		}

		if !awsv2.ToBool(result.IsTruncated) {
			break
		}
		continuation = result.NextContinuationToken
	}

	return deleted, nil
}

func (c *Cleaner) deleteBatches(ctx context.Context, bucket string,
	identifiers []s3types.ObjectIdentifier) (int, error) {

	deleted := 0

	for start := 0; start < len(identifiers); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(identifiers) {
			end = len(identifiers)
		}

		result, err := c.s3Api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: awsv2.String(bucket),
			Delete: &s3types.Delete{
				Objects: identifiers[start:end],
				Quiet:   awsv2.Bool(true),
			},
		})
		if err != nil {
			return deleted, errors.Wrapf(err, "Error deleting objects from "+
				"bucket '%s'", bucket)
		}

		if len(result.Errors) > 0 {
			first := result.Errors[0]
			return deleted, errors.New(fmt.Sprintf("Error deleting '%s' from "+
				"bucket '%s': %s", awsv2.ToString(first.Key), bucket,
				awsv2.ToString(first.Message)))
		}

		deleted += end - start
	}

	return deleted, nil
}
