package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"themesync/internal/config"
	"themesync/internal/themesync"
)

type fakeObject struct {
	data     []byte
	metadata map[string]string
}

// fakeS3 is an in-memory bucket implementing s3API and s3Uploader.
type fakeS3 struct {
	mu        sync.Mutex
	bucket    string
	objects   map[string]fakeObject
	uploadErr error
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string]fakeObject)}
}

func (f *fakeS3) Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, metadata: in.Metadata}
	return &manager.UploadOutput{Key: in.Key}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data)), Metadata: obj.metadata}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: obj.metadata}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Vault_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3("snapshots")
	v := newS3Vault("s3", "snapshots", "themesync", fake, fake)

	data := "encrypted snapshot"
	if err := v.PutMetadata(ctx, "inst-1", themesync.MetadataDatabase, strings.NewReader(data), int64(len(data)), 12); err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}

	if _, ok := fake.objects["themesync/inst-1/db"]; !ok {
		t.Errorf("object key not under prefix; have %v", fake.objects)
	}

	var buf bytes.Buffer
	if err := v.GetMetadata(ctx, "inst-1", themesync.MetadataDatabase, &buf); err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("GetMetadata() = %q, want %q", buf.String(), data)
	}

	version, err := v.GetMetadataVersion(ctx, "inst-1", themesync.MetadataDatabase)
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	if version != 12 {
		t.Errorf("GetMetadataVersion() = %d, want 12", version)
	}
}

func TestS3Vault_Missing(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3("snapshots")
	v := newS3Vault("s3", "snapshots", "", fake, fake)

	version, err := v.GetMetadataVersion(ctx, "inst-1", "db")
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("GetMetadataVersion() = %d, want 0", version)
	}

	var buf bytes.Buffer
	if err := v.GetMetadata(ctx, "inst-1", "db", &buf); !errors.Is(err, themesync.ErrNotFound) {
		t.Errorf("GetMetadata() error = %v, want ErrNotFound", err)
	}
}

func TestS3Vault_PutMetadataErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("size mismatch", func(t *testing.T) {
		fake := newFakeS3("snapshots")
		v := newS3Vault("s3", "snapshots", "", fake, fake)
		if err := v.PutMetadata(ctx, "inst-1", "db", strings.NewReader("abc"), 10, 1); err == nil {
			t.Error("PutMetadata() expected size mismatch error")
		}
	})

	t.Run("upload failure", func(t *testing.T) {
		fake := newFakeS3("snapshots")
		fake.uploadErr = errors.New("network down")
		v := newS3Vault("s3", "snapshots", "", fake, fake)
		if err := v.PutMetadata(ctx, "inst-1", "db", strings.NewReader("abc"), 3, 1); err == nil {
			t.Error("PutMetadata() expected upload error")
		}
	})
}

func TestS3Vault_ValidateSetup(t *testing.T) {
	fake := newFakeS3("snapshots")

	if err := newS3Vault("s3", "snapshots", "", fake, fake).ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
	if err := newS3Vault("s3", "other", "", fake, fake).ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() expected error for missing bucket")
	}
}

// TestS3Vault_Live runs against a real S3-compatible endpoint such as MinIO.
func TestS3Vault_Live(t *testing.T) {
	endpoint := os.Getenv("THEMESYNC_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("THEMESYNC_TEST_S3_ENDPOINT not set")
	}
	ctx := context.Background()

	v, err := NewS3Vault(ctx, config.VaultConfig{
		Type:              "s3",
		Name:              "live",
		S3Bucket:          os.Getenv("THEMESYNC_TEST_S3_BUCKET"),
		S3Region:          "us-east-1",
		S3Endpoint:        endpoint,
		S3AccessKeyID:     os.Getenv("THEMESYNC_TEST_S3_ACCESS_KEY"),
		S3SecretAccessKey: os.Getenv("THEMESYNC_TEST_S3_SECRET_KEY"),
	})
	if err != nil {
		t.Fatalf("NewS3Vault() error = %v", err)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		t.Fatalf("ValidateSetup() error = %v", err)
	}

	data := "live snapshot"
	if err := v.PutMetadata(ctx, "live-test", "db", strings.NewReader(data), int64(len(data)), 5); err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}
	version, err := v.GetMetadataVersion(ctx, "live-test", "db")
	if err != nil || version != 5 {
		t.Errorf("GetMetadataVersion() = %d, %v; want 5", version, err)
	}
}
