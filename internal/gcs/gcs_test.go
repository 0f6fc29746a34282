package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"
)

// fakeStorage keeps objects in memory, keyed by bucket/object.
type fakeStorage struct {
	objects map[string][]byte
	uploads int
}

func (f *fakeStorage) Download(ctx context.Context, bucket, object string, w io.Writer) error {
	data, ok := f.objects[bucket+"/"+object]
	if !ok {
		return fmt.Errorf("Download: %w", ErrObjectNotExist)
	}
	_, err := w.Write(data)
	return err
}

func (f *fakeStorage) Upload(ctx context.Context, bucket, object string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[bucket+"/"+object] = data
	f.uploads++
	return nil
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://books/2024/ledger.xlsx", "books", "2024/ledger.xlsx", false},
		{"gs://books/ledger.xlsx", "books", "ledger.xlsx", false},
		{"gs://books", "", "", true},
		{"gs://books/", "", "", true},
		{"gs:///ledger.xlsx", "", "", true},
		{"/tmp/ledger.xlsx", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected an error, got %s %s", bucket, object)
				}
				return
			}
			if err != nil || bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = %q, %q, %v", tt.uri, bucket, object, err)
			}
		})
	}
}

func TestWorkbook_SyncUploadsOnlyChanges(t *testing.T) {
	ctx := context.Background()
	svc := &fakeStorage{objects: map[string][]byte{"books/ledger.xlsx": []byte("v1")}}

	wb, err := Fetch(ctx, svc, "gs://books/ledger.xlsx", t.TempDir())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if data, _ := os.ReadFile(wb.Path); string(data) != "v1" {
		t.Fatalf("expected the downloaded contents, got %q", data)
	}

	if uploaded, err := wb.Sync(ctx); err != nil || uploaded {
		t.Errorf("expected no upload for an unchanged file, got %v %v", uploaded, err)
	}

	if err := os.WriteFile(wb.Path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if uploaded, err := wb.Sync(ctx); err != nil || !uploaded {
		t.Fatalf("expected an upload, got %v %v", uploaded, err)
	}
	if !bytes.Equal(svc.objects["books/ledger.xlsx"], []byte("v2")) || svc.uploads != 1 {
		t.Errorf("unexpected stored object %q after %d uploads", svc.objects["books/ledger.xlsx"], svc.uploads)
	}

	if uploaded, _ := wb.Sync(ctx); uploaded {
		t.Error("expected a second sync to be a no-op")
	}
}

func TestWorkbook_MissingObject(t *testing.T) {
	ctx := context.Background()
	svc := &fakeStorage{objects: map[string][]byte{}}

	wb, err := Fetch(ctx, svc, "gs://books/new.xlsx", t.TempDir())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if _, err := os.Stat(wb.Path); !os.IsNotExist(err) {
		t.Fatalf("expected no local file, got %v", err)
	}
	if uploaded, err := wb.Sync(ctx); err != nil || uploaded {
		t.Errorf("expected nothing to upload, got %v %v", uploaded, err)
	}

	if err := os.WriteFile(wb.Path, []byte("created"), 0o644); err != nil {
		t.Fatal(err)
	}
	if uploaded, err := wb.Sync(ctx); err != nil || !uploaded {
		t.Errorf("expected the new workbook to be uploaded, got %v %v", uploaded, err)
	}
}
