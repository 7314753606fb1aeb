// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	s3api "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// s3Transport keeps objects in a bucket under the same two-level fan-out
// key layout the local object store uses on disk (§4.1), and refs as
// individual keys under "refs/". It is meant for object transfer only; a
// deployment wanting CAS ref updates against S3 should pair it with a
// locking layer the bucket itself does not provide (see mysqlRefStore for
// a backend that does).
type s3Transport struct {
	client *s3api.Client
	bucket string
	prefix string
}

// NewS3Transport loads the default AWS credential chain (environment,
// shared config, EC2/ECS role) and returns a Transport backed by bucket.
func NewS3Transport(ctx context.Context, bucket, keyPrefix string) (Transport, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote: load aws config: %w", err)
	}
	return &s3Transport{client: s3api.NewFromConfig(cfg), bucket: bucket, prefix: strings.Trim(keyPrefix, "/")}, nil
}

func (t *s3Transport) objectKey(oid plumbing.Hash) string {
	s := oid.String()
	return fmt.Sprintf("%s/objects/%s/%s", t.prefix, s[:2], s[2:])
}

func (t *s3Transport) refKey(name plumbing.ReferenceName) string {
	return fmt.Sprintf("%s/%s", t.prefix, name)
}

func (t *s3Transport) ListRefs(ctx context.Context) ([]*plumbing.Reference, error) {
	out, err := t.client.ListObjectsV2(ctx, &s3api.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
		Prefix: aws.String(t.prefix + "/refs/"),
	})
	if err != nil {
		return nil, fmt.Errorf("remote: s3 list refs: %w", err)
	}
	refs := make([]*plumbing.Reference, 0, len(out.Contents))
	for _, obj := range out.Contents {
		name := strings.TrimPrefix(aws.ToString(obj.Key), t.prefix+"/")
		val, err := t.getString(ctx, aws.ToString(obj.Key))
		if err != nil {
			return nil, err
		}
		refs = append(refs, plumbing.NewReferenceFromStrings(name, val))
	}
	return refs, nil
}

func (t *s3Transport) getString(ctx context.Context, key string) (string, error) {
	out, err := t.client.GetObject(ctx, &s3api.GetObjectInput{Bucket: aws.String(t.bucket), Key: aws.String(key)})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (t *s3Transport) HasObject(ctx context.Context, oid plumbing.Hash) (bool, error) {
	_, err := t.client.HeadObject(ctx, &s3api.HeadObjectInput{Bucket: aws.String(t.bucket), Key: aws.String(t.objectKey(oid))})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (t *s3Transport) PullObject(ctx context.Context, oid plumbing.Hash) (object.Kind, []byte, error) {
	out, err := t.client.GetObject(ctx, &s3api.GetObjectInput{Bucket: aws.String(t.bucket), Key: aws.String(t.objectKey(oid))})
	if err != nil {
		return 0, nil, fmt.Errorf("remote: s3 pull %s: %w", oid, err)
	}
	defer out.Body.Close()
	kind, err := strconv.Atoi(aws.ToString(out.Metadata["ember-kind"]))
	if err != nil {
		return 0, nil, fmt.Errorf("remote: s3 pull %s: missing object kind metadata", oid)
	}
	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, nil, err
	}
	return object.Kind(kind), payload, nil
}

func (t *s3Transport) PushObject(ctx context.Context, oid plumbing.Hash, kind object.Kind, payload []byte) error {
	_, err := t.client.PutObject(ctx, &s3api.PutObjectInput{
		Bucket:   aws.String(t.bucket),
		Key:      aws.String(t.objectKey(oid)),
		Body:     bytes.NewReader(payload),
		Metadata: map[string]string{"ember-kind": strconv.Itoa(int(kind))},
	})
	if err != nil {
		return fmt.Errorf("remote: s3 push %s: %w", oid, err)
	}
	return nil
}

// UpdateRef reads the ref, compares it with expectedOld, and then writes
// it: S3 has no native compare-and-swap, so the read and the write are
// separate requests and another writer can land between them. Callers
// relying on push's fast-forward safety should route ref
// updates through a Transport that can (httpTransport's server performs
// the CAS locally; mysqlRefStore uses a transaction).
func (t *s3Transport) UpdateRef(ctx context.Context, name plumbing.ReferenceName, newOid plumbing.Hash, expectedOld *plumbing.Hash) error {
	if expectedOld != nil {
		cur, err := t.getString(ctx, t.refKey(name))
		if err != nil && !isNotFound(err) {
			return err
		}
		var curOid plumbing.Hash
		if err == nil {
			curOid = plumbing.NewHash(cur)
		}
		if curOid != *expectedOld {
			return &plumbing.ErrConcurrentUpdate{Name: name, Expected: *expectedOld, Actual: curOid}
		}
	}
	_, err := t.client.PutObject(ctx, &s3api.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.refKey(name)),
		Body:   strings.NewReader(newOid.String() + "\n"),
	})
	return err
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	return errors.As(err, &nf)
}
