package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"medicopro/internal/blob/core"
)

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	store, err := New(context.Background(), Config{
		Bucket:          "patients",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		PathStyle:       true,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Bucket() != "patients" || store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected store %+v", store)
	}
	url, err := store.PresignURL(context.Background(), "exports/a.csv", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(url, "http://127.0.0.1:9000/patients/exports/a.csv?") {
		t.Fatalf("expected path style url, got %s", url)
	}
}

func TestMockRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if _, err := store.Put(ctx, "patients.csv", strings.NewReader("a,b\n1,2\n"), core.PutOptions{ContentType: "text/csv"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, rc, err := store.Get(ctx, "patients.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "a,b\n1,2\n" || info.ContentType != "text/csv" {
		t.Fatalf("unexpected object %q %+v", body, info)
	}
	if _, _, err := store.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	body, ok := decodeAWSChunked([]byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:abc\r\n\r\n"))
	if !ok || string(body) != "hello" {
		t.Fatalf("decode: %q %v", body, ok)
	}
	if _, ok := decodeAWSChunked([]byte("first_name,last_name\r\nAna,Lopez\r\n")); ok {
		t.Fatalf("plain csv must not be treated as chunked")
	}
}
