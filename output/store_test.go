package output

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreWriteAndRemove(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore()

	if err := s.Write(dir, "job-1", []byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "job-1"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("file contents = %q, want %q", got, "payload")
	}

	if err := s.Remove(dir, "job-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "job-1")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err = %v", err)
	}
}

func TestLocalStoreRemoveMissingIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore()
	if err := s.Remove(dir, "never-written"); err != nil {
		t.Fatalf("Remove on absent file should be a no-op, got %v", err)
	}
}

func TestForPathSchemeDispatch(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/var/lib/scheduler/out", "*output.LocalStore"},
		{"s3://bucket/prefix", "*output.S3Store"},
		{"gs://bucket/prefix", "*output.GCSStore"},
		{"azblob://container/prefix", "*output.AzureStore"},
		{"hdfs://namenode/path", "*output.HDFSStore"},
	}
	for _, c := range cases {
		got := ForPath(c.path)
		if gotType := typeName(got); gotType != c.want {
			t.Errorf("ForPath(%q) = %s, want %s", c.path, gotType, c.want)
		}
	}
}

func typeName(s Store) string {
	switch s.(type) {
	case *LocalStore:
		return "*output.LocalStore"
	case *S3Store:
		return "*output.S3Store"
	case *GCSStore:
		return "*output.GCSStore"
	case *AzureStore:
		return "*output.AzureStore"
	case *HDFSStore:
		return "*output.HDFSStore"
	default:
		return "unknown"
	}
}

func TestSplitBucketPrefix(t *testing.T) {
	cases := []struct {
		path       string
		scheme     string
		wantBucket string
		wantPrefix string
	}{
		{"s3://bucket", "s3://", "bucket", ""},
		{"s3://bucket/prefix/sub", "s3://", "bucket", "prefix/sub"},
	}
	for _, c := range cases {
		bucket, prefix := splitBucketPrefix(c.path, c.scheme)
		if bucket != c.wantBucket || prefix != c.wantPrefix {
			t.Errorf("splitBucketPrefix(%q, %q) = (%q, %q), want (%q, %q)",
				c.path, c.scheme, bucket, prefix, c.wantBucket, c.wantPrefix)
		}
	}
}

func TestOutputPath(t *testing.T) {
	if got := outputPath("/data/queue1", "job-42"); got != "/data/queue1/job-42" {
		t.Errorf("outputPath = %q, want /data/queue1/job-42", got)
	}
}
