package snapshot

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/derive/internal/errors"
	"github.com/vango-dev/derive/internal/scenario"
	"github.com/vango-dev/derive/pkg/reactive"
)

func value(v float64) *float64 { return &v }

func sample(name string, clock uint64) *Snapshot {
	return &Snapshot{
		Version:  FormatVersion,
		Scenario: name,
		TakenAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Clock:    clock,
		Nodes: []scenario.NodeState{
			{Name: "a", Kind: scenario.KindSource, Status: "clean", Version: 1, Value: value(3)},
			{Name: "b", Kind: scenario.KindDerived, Status: "dirty", Version: 0},
		},
	}
}

// runStoreContract checks the behavior every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("LoadMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Load(ctx, "missing")
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, ErrNotFound))
	})

	t.Run("SaveLoad", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "one", sample("demo", 7)))

		got, err := store.Load(ctx, "one")
		require.NoError(t, err)
		assert.Equal(t, sample("demo", 7), got)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "one", sample("demo", 1)))
		require.NoError(t, store.Save(ctx, "one", sample("demo", 2)))

		got, err := store.Load(ctx, "one")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), got.Clock)
	})

	t.Run("List", func(t *testing.T) {
		store := newStore(t)
		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		require.NoError(t, store.Save(ctx, "b", sample("demo", 1)))
		require.NoError(t, store.Save(ctx, "a", sample("demo", 1)))

		keys, err = store.List(ctx)
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"a", "b"}, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "one", sample("demo", 1)))
		require.NoError(t, store.Delete(ctx, "one"))
		require.NoError(t, store.Delete(ctx, "one"))

		_, err := store.Load(ctx, "one")
		assert.True(t, stderrors.Is(err, ErrNotFound))

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		store := newStore(t)
		assert.Error(t, store.Save(ctx, "", sample("demo", 1)))
		_, err := store.Load(ctx, "")
		assert.Error(t, err)
	})
}

func TestFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewFileStore(afero.NewMemMapFs(), "/snapshots")
	})
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFileStore(fs, "/snapshots")
	require.NoError(t, store.Save(context.Background(), "one", sample("demo", 1)))

	entries, err := afero.ReadDir(fs, "/snapshots")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "one.json", entries[0].Name())
}

func TestFileStoreCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/snapshots/bad.json", []byte("{"), 0644))

	_, err := NewFileStore(fs, "/snapshots").Load(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeSnapshotIO)))
}

func TestRedisStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisStore(client)
	})
}

func TestRedisStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, WithTTL(time.Minute), WithPrefix("t:"))
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "one", sample("demo", 1)))
	assert.True(t, mr.Exists("t:one"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "one")
	assert.True(t, stderrors.Is(err, ErrNotFound))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// fakeS3 is an in-memory S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Prefix)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out.Contents = append(out.Contents, types.Object{
				Key: aws.String(strings.TrimPrefix(key, aws.ToString(in.Bucket)+"/")),
			})
		}
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewS3Store(newFakeS3(), "bucket", "derive")
	})
}

func TestS3StorePrefix(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bucket", "snaps")
	require.NoError(t, store.Save(context.Background(), "one", sample("demo", 1)))

	_, ok := fake.objects["bucket/snaps/one.json"]
	assert.True(t, ok)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, "mem://snapshots")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	require.NoError(t, store.Save(ctx, "x", sample("demo", 1)))

	store, err = Open(ctx, "file://"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	require.NoError(t, store.Save(ctx, "x", sample("demo", 1)))
	_, err = store.Load(ctx, "x")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	store, err = Open(ctx, "redis://"+mr.Addr()+"/0?prefix=p:")
	require.NoError(t, err)
	defer Close(store)
	require.NoError(t, store.Save(ctx, "x", sample("demo", 1)))
	assert.True(t, mr.Exists("p:x"))

	_, err = Open(ctx, "ftp://host/dir")
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeSnapshotScheme)))

	_, err = Open(ctx, "s3:///nobucket")
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeSnapshotScheme)))
}

const counterScenario = `
name: counter
nodes:
  - {name: count, kind: source, value: 1}
  - {name: double, kind: derived, op: product, args: [count, "2"]}
  - {name: limit, kind: writable, op: ref, args: [double]}
`

func buildGraph(t *testing.T, src string) *scenario.Graph {
	t.Helper()
	sc, err := scenario.Parse([]byte(src))
	require.NoError(t, err)
	g, err := scenario.Build(reactive.New(), sc)
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g
}

func TestTakeRestore(t *testing.T) {
	g := buildGraph(t, counterScenario)
	require.NoError(t, g.Set("count", 5))
	require.NoError(t, g.Write("limit", 3))

	snap := Take(g)
	assert.Equal(t, "counter", snap.Scenario)
	assert.Equal(t, FormatVersion, snap.Version)
	require.Len(t, snap.Nodes, 3)

	store := NewFileStore(afero.NewMemMapFs(), "")
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "latest", snap))
	loaded, err := store.Load(ctx, "latest")
	require.NoError(t, err)

	fresh := buildGraph(t, counterScenario)
	require.NoError(t, Restore(fresh, loaded))

	v, err := fresh.Read("count")
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	v, err = fresh.Read("double")
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	v, err = fresh.Read("limit")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestRestoreMismatch(t *testing.T) {
	g := buildGraph(t, counterScenario)
	err := Restore(g, sample("other", 1))
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeSnapshotMismatch)))
}

func TestRestoreUnknownNodes(t *testing.T) {
	g := buildGraph(t, counterScenario)
	snap := Take(g)
	snap.Nodes = append(snap.Nodes, scenario.NodeState{Name: "ghost", Kind: scenario.KindSource, Value: value(1)})

	err := Restore(g, snap)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeUnknownNode)))
}
