// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/ember/refs"
	"github.com/emberscm/ember/modules/plumbing"
	"github.com/emberscm/ember/pkg/ember/odb"
)

func TestHTTPTransportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := odb.NewStore(t.TempDir())
	require.NoError(t, err)
	refStore := refs.NewStore(t.TempDir())

	secret := []byte("test-secret")
	server := NewServer(store, refStore, "demo", secret)
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	token, err := IssueToken(secret, "demo", true, time.Minute)
	require.NoError(t, err)

	transport := NewHTTPTransport(ts.URL, token)

	oid, err := store.Put(ctx, object.BlobKind, []byte("hello world"))
	require.NoError(t, err)

	has, err := transport.HasObject(ctx, oid)
	require.NoError(t, err)
	assert.True(t, has)

	kind, payload, err := transport.PullObject(ctx, oid)
	require.NoError(t, err)
	assert.Equal(t, object.BlobKind, kind)
	assert.Equal(t, "hello world", string(payload))

	pushed, err := object.HashOf(object.BlobKind, blobEncoder("pushed content"))
	require.NoError(t, err)
	require.NoError(t, transport.PushObject(ctx, pushed, object.BlobKind, []byte("pushed content")))
	assert.True(t, store.Exists(pushed))

	branch := plumbing.NewBranchReferenceName("main")
	require.NoError(t, transport.UpdateRef(ctx, branch, oid, nil))

	refsList, err := transport.ListRefs(ctx)
	require.NoError(t, err)
	require.Len(t, refsList, 1)
	assert.Equal(t, oid, refsList[0].Hash())

	err = transport.UpdateRef(ctx, branch, pushed, nil)
	assert.Error(t, err)
}

type blobEncoder string

func (b blobEncoder) Encode() ([]byte, error) { return []byte(b), nil }
