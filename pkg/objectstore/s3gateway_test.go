package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// newFakeS3Server emulates the slice of the S3 REST API s3Gateway
// exercises (HeadBucket, PutObject, GetObject, DeleteObject,
// ListObjectsV2) against an in-memory object map, letting the gateway be
// tested without a live MinIO/S3 endpoint.
func newFakeS3Server(bucket string) *httptest.Server {
	var mu sync.Mutex
	objects := make(map[string][]byte)

	mux := http.NewServeMux()
	objectPrefix := "/" + bucket + "/"

	mux.HandleFunc(objectPrefix, func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, objectPrefix)
		switch r.Method {
		case http.MethodPut:
			data, err := readAllBody(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			mu.Lock()
			objects[key] = data
			mu.Unlock()
			w.Header().Set("ETag", `"fake-etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			mu.Lock()
			data, ok := objects[key]
			mu.Unlock()
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message><Key>%s</Key><RequestId>1</RequestId></Error>`, key)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write(data)
		case http.MethodDelete:
			mu.Lock()
			delete(objects, key)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/"+bucket, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			if r.URL.Query().Get("list-type") != "2" {
				http.Error(w, "unsupported query", http.StatusMethodNotAllowed)
				return
			}
			prefix := r.URL.Query().Get("prefix")
			mu.Lock()
			var keys []string
			for k := range objects {
				if strings.HasPrefix(k, prefix) {
					keys = append(keys, k)
				}
			}
			mu.Unlock()
			sort.Strings(keys)

			var buf bytes.Buffer
			buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
			for _, k := range keys {
				fmt.Fprintf(&buf, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(objects[k]))
			}
			buf.WriteString(`<IsTruncated>false</IsTruncated></ListBucketResult>`)
			w.Header().Set("Content-Type", "application/xml")
			w.Write(buf.Bytes())
		default:
			http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		}
	})

	return httptest.NewServer(mux)
}

func readAllBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}

func newTestGateway(t *testing.T, server *httptest.Server, bucket string) Gateway {
	t.Helper()
	endpoint := strings.TrimPrefix(server.URL, "http://")
	gw, err := New(Config{
		Endpoint:  endpoint,
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    bucket,
		Secure:    false,
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return gw
}

func TestS3GatewayPutGetRoundTrip(t *testing.T) {
	server := newFakeS3Server("mediascribe")
	defer server.Close()
	gw := newTestGateway(t, server, "mediascribe")

	ctx := context.Background()
	path := "task-1/chunks/chunk_000.wav"
	if err := gw.Put(ctx, path, bytes.NewReader([]byte("audio bytes")), "audio/wav", nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := gw.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "audio bytes" {
		t.Errorf("Get() = %q, want %q", got, "audio bytes")
	}
}

func TestS3GatewayGetMissingObjectReturnsNilNoError(t *testing.T) {
	server := newFakeS3Server("mediascribe")
	defer server.Close()
	gw := newTestGateway(t, server, "mediascribe")

	got, err := gw.Get(context.Background(), "task-1/chunks/missing.wav")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil for a missing object", err)
	}
	if got != nil {
		t.Errorf("Get() = %v, want nil", got)
	}
}

func TestS3GatewayDeleteReportsExistence(t *testing.T) {
	server := newFakeS3Server("mediascribe")
	defer server.Close()
	gw := newTestGateway(t, server, "mediascribe")

	ctx := context.Background()
	path := "task-1/audio/full.wav"
	if err := gw.Put(ctx, path, bytes.NewReader([]byte("x")), "audio/wav", nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	existed, err := gw.Delete(ctx, path)
	if err != nil || !existed {
		t.Fatalf("Delete() = (%v, %v), want (true, nil)", existed, err)
	}

	stillThere, err := gw.Get(ctx, path)
	if err != nil || stillThere != nil {
		t.Fatalf("expected object to be gone after delete, got data=%v err=%v", stillThere, err)
	}
}

func TestS3GatewayListFiltersByPrefix(t *testing.T) {
	server := newFakeS3Server("mediascribe")
	defer server.Close()
	gw := newTestGateway(t, server, "mediascribe")

	ctx := context.Background()
	for _, p := range []string{"task-1/chunks/chunk_000.wav", "task-1/chunks/chunk_001.wav", "task-2/chunks/chunk_000.wav"} {
		if err := gw.Put(ctx, p, bytes.NewReader([]byte("x")), "audio/wav", nil); err != nil {
			t.Fatalf("Put(%s) error = %v", p, err)
		}
	}

	got, err := gw.List(ctx, "task-1/chunks/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List() returned %d paths, want 2: %v", len(got), got)
	}
}

func TestS3GatewaySaveJSONAndGetJSONRoundTrip(t *testing.T) {
	server := newFakeS3Server("mediascribe")
	defer server.Close()
	gw := newTestGateway(t, server, "mediascribe")

	type payload struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}

	ctx := context.Background()
	path := "task-1/metadata/video_metadata.json"
	want := payload{Name: "a talk", N: 3}
	if err := gw.SaveJSON(ctx, path, want); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}

	var got payload
	found, err := gw.GetJSON(ctx, path, &got)
	if err != nil || !found {
		t.Fatalf("GetJSON() = (found=%v, err=%v)", found, err)
	}
	if got != want {
		t.Errorf("GetJSON() = %+v, want %+v", got, want)
	}
}

func TestS3GatewayGetJSONMissingReturnsFalse(t *testing.T) {
	server := newFakeS3Server("mediascribe")
	defer server.Close()
	gw := newTestGateway(t, server, "mediascribe")

	var out map[string]string
	found, err := gw.GetJSON(context.Background(), "task-1/metadata/missing.json", &out)
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if found {
		t.Errorf("expected found=false for a missing object")
	}
}

func TestS3GatewayPresignBuildsAURLWithoutNetworkAccess(t *testing.T) {
	server := newFakeS3Server("mediascribe")
	defer server.Close()
	gw := newTestGateway(t, server, "mediascribe")

	url, err := gw.Presign(context.Background(), "task-1/audio/full.wav", 5*time.Minute)
	if err != nil {
		t.Fatalf("Presign() error = %v", err)
	}
	if !strings.Contains(url, "task-1/audio/full.wav") {
		t.Errorf("Presign() = %q, expected it to contain the object path", url)
	}
	if !strings.Contains(url, "X-Amz-Signature") {
		t.Errorf("Presign() = %q, expected a signed query string", url)
	}
}
