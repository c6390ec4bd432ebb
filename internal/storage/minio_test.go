package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 implements the handful of S3 calls MinioStorage makes, path-style.
type fakeS3 struct {
	mu        sync.Mutex
	buckets   map[string]bool
	objects   map[string][]byte
	denied    map[string]bool
	uploads   map[string]map[int][]byte
	partSizes []int
	nextID    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		buckets: map[string]bool{},
		objects: map[string][]byte{},
		denied:  map[string]bool{},
		uploads: map[string]map[int][]byte{},
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	name := bucket + "/" + key
	q := r.URL.Query()

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPost && q.Has("uploads"):
		f.nextID++
		id := fmt.Sprintf("upload-%d", f.nextID)
		f.uploads[id] = map[int][]byte{}
		writeXML(w, http.StatusOK, fmt.Sprintf(
			`<InitiateMultipartUploadResult><Bucket>%s</Bucket><Key>%s</Key><UploadId>%s</UploadId></InitiateMultipartUploadResult>`,
			bucket, key, id))

	case r.Method == http.MethodPut && q.Has("uploadId"):
		parts, ok := f.uploads[q.Get("uploadId")]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchUpload")
			return
		}
		n, _ := strconv.Atoi(q.Get("partNumber"))
		body := readS3Body(r)
		parts[n] = body
		f.partSizes = append(f.partSizes, len(body))
		w.Header().Set("ETag", fmt.Sprintf(`"part-%d"`, n))
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPost && q.Has("uploadId"):
		parts, ok := f.uploads[q.Get("uploadId")]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchUpload")
			return
		}
		numbers := make([]int, 0, len(parts))
		for n := range parts {
			numbers = append(numbers, n)
		}
		sort.Ints(numbers)
		var obj []byte
		for _, n := range numbers {
			obj = append(obj, parts[n]...)
		}
		f.objects[name] = obj
		delete(f.uploads, q.Get("uploadId"))
		writeXML(w, http.StatusOK, fmt.Sprintf(
			`<CompleteMultipartUploadResult><Location>/%s</Location><Bucket>%s</Bucket><Key>%s</Key><ETag>"complete"</ETag></CompleteMultipartUploadResult>`,
			name, bucket, key))

	case r.Method == http.MethodDelete && q.Has("uploadId"):
		delete(f.uploads, q.Get("uploadId"))
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPut:
		f.objects[name] = readS3Body(r)
		w.Header().Set("ETag", `"single"`)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		if f.denied[name] {
			writeS3Error(w, http.StatusForbidden, "AccessDenied")
			return
		}
		obj, ok := f.objects[name]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		h := w.Header()
		h.Set("Content-Length", strconv.Itoa(len(obj)))
		h.Set("Content-Type", "application/octet-stream")
		h.Set("ETag", `"stored"`)
		h.Set("Last-Modified", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj)
		}

	case r.Method == http.MethodDelete:
		delete(f.objects, name)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeS3Error(w, http.StatusNotImplemented, "NotImplemented")
	}
}

func (f *fakeS3) object(name string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[name]
	return obj, ok
}

func (f *fakeS3) uploadedParts() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.partSizes...)
}

func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+body)
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	writeXML(w, status, fmt.Sprintf(`<Error><Code>%s</Code><Message>%s</Message><RequestId>1</RequestId></Error>`, code, code))
}

// readS3Body returns the payload, undoing aws-chunked framing when the client used it.
func readS3Body(r *http.Request) []byte {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") &&
		!strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
		b, _ := io.ReadAll(r.Body)
		return b
	}
	br := bufio.NewReader(r.Body)
	var out []byte
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return out
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		n, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil || n == 0 {
			return out
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return out
		}
		out = append(out, chunk...)
		_, _ = br.ReadString('\n')
	}
}

func newTestMinio(t *testing.T, partSize uint64) (*MinioStorage, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	srv := httptest.NewTLSServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewMinioStorage(context.Background(), MinioOptions{
		Endpoint:  strings.TrimPrefix(srv.URL, "https://"),
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "quickshare",
		UseSSL:    true,
		Region:    "us-east-1",
		PartSize:  partSize,
		Transport: srv.Client().Transport,
	})
	require.NoError(t, err)
	return store, fake
}

func TestMinioStorage_CreatesBucket(t *testing.T) {
	store, fake := newTestMinio(t, 0)

	fake.mu.Lock()
	created := fake.buckets["quickshare"]
	fake.mu.Unlock()
	assert.True(t, created)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestMinioStorage_DefaultPartSize(t *testing.T) {
	store, _ := newTestMinio(t, 0)

	opts := store.putOptions("text/plain")
	assert.Equal(t, uint64(DefaultPartSize), opts.PartSize)
	assert.Equal(t, "text/plain", opts.ContentType)
}

func TestMinioStorage_SaveOpenUnknownSize(t *testing.T) {
	store, fake := newTestMinio(t, 0)
	ctx := context.Background()

	n, err := store.Save(ctx, "k1-a.txt", strings.NewReader("abc"), -1, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	stored, ok := fake.object("quickshare/k1-a.txt")
	require.True(t, ok)
	assert.Equal(t, "abc", string(stored))

	obj, err := store.Open(ctx, "k1-a.txt")
	require.NoError(t, err)
	defer obj.Close()
	assert.Equal(t, int64(3), obj.Size)
	assert.False(t, obj.ModTime.IsZero())

	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestMinioStorage_SplitsIntoConfiguredParts(t *testing.T) {
	const partSize = 5 << 20
	store, fake := newTestMinio(t, partSize)
	payload := bytes.Repeat([]byte("q"), partSize+1024)

	n, err := store.Save(context.Background(), "k2-big.bin", bytes.NewReader(payload), -1, "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	assert.Equal(t, []int{partSize, 1024}, fake.uploadedParts())
	stored, ok := fake.object("quickshare/k2-big.bin")
	require.True(t, ok)
	assert.Equal(t, payload, stored)
}

func TestMinioStorage_OpenMissing(t *testing.T) {
	store, fake := newTestMinio(t, 0)
	fake.mu.Lock()
	fake.denied["quickshare/k3-secret.txt"] = true
	fake.mu.Unlock()

	_, err := store.Open(context.Background(), "nope.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Open(context.Background(), "k3-secret.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMinioStorage_Delete(t *testing.T) {
	store, fake := newTestMinio(t, 0)
	ctx := context.Background()

	_, err := store.Save(ctx, "k4-a.txt", strings.NewReader("abc"), 3, "text/plain")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "k4-a.txt"))
	_, ok := fake.object("quickshare/k4-a.txt")
	assert.False(t, ok)

	assert.NoError(t, store.Delete(ctx, "k4-a.txt"), "deleting twice is not an error")
}

func TestMinioStorage_InvalidKeys(t *testing.T) {
	store, _ := newTestMinio(t, 0)
	ctx := context.Background()

	_, err := store.Save(ctx, "../x", strings.NewReader("abc"), 3, "text/plain")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = store.Open(ctx, "a/b")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, store.Delete(ctx, ".."), ErrInvalidKey)
}

func TestMinioStorage_PingMissingBucket(t *testing.T) {
	store, fake := newTestMinio(t, 0)

	fake.mu.Lock()
	delete(fake.buckets, "quickshare")
	fake.mu.Unlock()

	assert.Error(t, store.Ping(context.Background()))
}
