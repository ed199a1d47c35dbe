// Package archive ships completed flow outcomes to long-term blob storage
// for offline evaluation
package archive

import (
	"context"
	"encoding/json"
	"errors"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/intentflow/engine/pkg/api"
)

// BlobArchiver writes outcomes through gocloud.dev/blob, supporting S3,
// GCS, Azure Blob Storage, local files, and S3-compatible stores
type BlobArchiver struct {
	bucket *blob.Bucket
	prefix string
}

var (
	ErrOutcomeNotFound = errors.New("archived outcome not found")
	ErrNilOutcome      = errors.New("outcome is nil")
)

// NewBlobArchiver opens the bucket named by URL. Keys are prefixed so one
// bucket can serve several deployments
func NewBlobArchiver(
	ctx context.Context, bucketURL, prefix string,
) (*BlobArchiver, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &BlobArchiver{bucket: bucket, prefix: prefix}, nil
}

// Archive writes one outcome as a JSON document keyed by flow ID
func (a *BlobArchiver) Archive(
	ctx context.Context, outcome *api.FlowOutcome,
) error {
	if outcome == nil {
		return ErrNilOutcome
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return a.bucket.WriteAll(ctx, a.keyFor(outcome.FlowID), data, nil)
}

// Load reads an archived outcome back
func (a *BlobArchiver) Load(
	ctx context.Context, flowID api.FlowID,
) (*api.FlowOutcome, error) {
	data, err := a.bucket.ReadAll(ctx, a.keyFor(flowID))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrOutcomeNotFound
		}
		return nil, err
	}
	var outcome api.FlowOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// Delete removes an archived outcome. Missing keys are not an error
func (a *BlobArchiver) Delete(
	ctx context.Context, flowID api.FlowID,
) error {
	err := a.bucket.Delete(ctx, a.keyFor(flowID))
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

// Close releases the bucket handle
func (a *BlobArchiver) Close() error {
	return a.bucket.Close()
}

func (a *BlobArchiver) keyFor(flowID api.FlowID) string {
	return a.prefix + string(flowID) + ".json"
}
