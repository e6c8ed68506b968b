package filestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"workhours/internal/platform/crypto"
)

func TestLocalPutGet(t *testing.T) {
	store := NewLocal(t.TempDir())
	ctx := context.Background()

	if err := store.Put(ctx, "signatures/jdoe_1.png", []byte("png"), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := store.Get(ctx, "signatures/jdoe_1.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "png" {
		t.Fatalf("expected png, got %q", data)
	}

	if _, err := store.Get(ctx, "signatures/missing.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalKeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	store := NewLocal(root)
	target, err := store.path("../../etc/passwd")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if !strings.HasPrefix(target, root) {
		t.Fatalf("expected %s to stay under %s", target, root)
	}
}

func TestSealedStoreEncryptsAtRest(t *testing.T) {
	sealer, err := crypto.NewSealer(strings.Repeat("z", 32))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	backend := NewLocal(t.TempDir())
	store := Sealed{Store: backend, Sealer: sealer}
	ctx := context.Background()

	if err := store.Put(ctx, "a.png", []byte("secret"), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	raw, _ := backend.Get(ctx, "a.png")
	if bytes.Contains(raw, []byte("secret")) {
		t.Fatal("expected sealed bytes on disk")
	}
	plain, err := store.Get(ctx, "a.png")
	if err != nil || string(plain) != "secret" {
		t.Fatalf("expected secret, got %q, %v", plain, err)
	}
}

func TestNewKey(t *testing.T) {
	key := NewKey("signatures", "j doe/../x", ".png")
	if !strings.HasPrefix(key, "signatures/j_doe_.._x_") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %s", key)
	}
}

type fakeObjects struct {
	objects map[string][]byte
}

func (f *fakeObjects) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3UsesPrefix(t *testing.T) {
	client := &fakeObjects{objects: map[string][]byte{}}
	store := &S3{client: client, bucket: "bucket", prefix: "workhours"}
	ctx := context.Background()

	if err := store.Put(ctx, "signatures/a.png", []byte("x"), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := client.objects["workhours/signatures/a.png"]; !ok {
		t.Fatalf("expected prefixed key, got %v", client.objects)
	}
	if _, err := store.Get(ctx, "signatures/b.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesAndToleratesMissing(t *testing.T) {
	ctx := context.Background()
	client := &fakeObjects{objects: map[string][]byte{}}
	for name, store := range map[string]Store{
		"local": NewLocal(t.TempDir()),
		"s3":    &S3{client: client, bucket: "bucket", prefix: "workhours"},
	} {
		if err := store.Put(ctx, "signatures/a.png", []byte("x"), "image/png"); err != nil {
			t.Fatalf("%s put: %v", name, err)
		}
		if err := store.Delete(ctx, "signatures/a.png"); err != nil {
			t.Fatalf("%s delete: %v", name, err)
		}
		if _, err := store.Get(ctx, "signatures/a.png"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound after delete, got %v", name, err)
		}
		if err := store.Delete(ctx, "signatures/a.png"); err != nil {
			t.Fatalf("%s: deleting a missing key: %v", name, err)
		}
	}
}
