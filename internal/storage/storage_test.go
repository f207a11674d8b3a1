package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"imgconv/format"
	"imgconv/internal/logger"
	"imgconv/internal/message"
)

// fakeS3 answers the handful of path-style S3 calls the storage makes.
type fakeS3 struct {
	mu           sync.Mutex
	buckets      map[string]bool
	objects      map[string][]byte
	contentTypes map[string]string
	formats      map[string]string
	madeBuckets  []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		buckets:      map[string]bool{},
		objects:      map[string][]byte{},
		contentTypes: map[string]string{},
		formats:      map[string]string{},
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.Trim(r.URL.Path, "/"), "/", 2)
	bucket, object := parts[0], ""
	if len(parts) == 2 {
		object = parts[1]
	}

	switch {
	case object == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case object == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		f.madeBuckets = append(f.madeBuckets, bucket)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+object] = body
		f.contentTypes[bucket+"/"+object] = r.Header.Get("Content-Type")
		f.formats[bucket+"/"+object] = r.Header.Get("X-Amz-Meta-Format")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[bucket+"/"+object]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T, conf Config) (*minioStorage, *fakeS3) {
	fake := newFakeS3()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	conf.Endpoint = strings.TrimPrefix(ts.URL, "http://")
	conf.AccessKey = "access"
	conf.SecretKey = "secret"
	conf.Region = "us-east-1"

	log, _ := logger.NewNullLogger()
	s, err := NewMinioStorage(conf, log)
	require.NoError(t, err)
	return s, fake
}

func TestNewMinioStorageRejectsURLs(t *testing.T) {
	log, hook := logger.NewNullLogger()
	s, err := NewMinioStorage(Config{Endpoint: "http://localhost:9000/path"}, log)
	require.Nil(t, s)
	require.Error(t, err)
	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	require.Equal(t, "Failed to create a new minio client.", hook.LastEntry().Message)
}

func TestStoreCreatesMissingBucket(t *testing.T) {
	s, fake := newTestStorage(t, Config{CreateBucketIfNotExist: true})

	loc := message.Location{Bucket: "converted", Object: "converted_1.qoi"}
	require.NoError(t, s.Store(context.Background(), loc, format.Qoi, []byte("qoif")))
	require.Equal(t, []string{"converted"}, fake.madeBuckets)

	loc.Object = "converted_2.qoi"
	require.NoError(t, s.Store(context.Background(), loc, format.Qoi, []byte("qoif")))
	require.Equal(t, []string{"converted"}, fake.madeBuckets)
}

func TestStoreSetsImageMetadata(t *testing.T) {
	s, fake := newTestStorage(t, Config{})

	for f, contentType := range map[format.Format]string{
		format.Qoi:  "image/x-qoi",
		format.Png:  "image/png",
		format.Tga:  "image/x-tga",
		format.Jpeg: "image/jpeg",
	} {
		t.Run(f.String(), func(t *testing.T) {
			loc := message.Location{Bucket: "converted", Object: "image" + f.Extension()}
			require.NoError(t, s.Store(context.Background(), loc, f, []byte("data")))

			key := "converted/" + loc.Object
			require.Equal(t, contentType, fake.contentTypes[key])
			require.Equal(t, f.String(), fake.formats[key])
		})
	}
	require.Empty(t, fake.madeBuckets)
}

func TestStoreRejectsUnknownFormat(t *testing.T) {
	s, fake := newTestStorage(t, Config{})

	err := s.Store(context.Background(), message.Location{Bucket: "converted", Object: "a.bin"}, format.Unknown, []byte("data"))
	require.ErrorIs(t, err, ErrUnknownFormat)
	require.Empty(t, fake.objects)
}

func TestRetrieve(t *testing.T) {
	s, fake := newTestStorage(t, Config{})
	fake.objects["images/a.png"] = []byte("\x89PNG\r\n\x1a\n")
	fake.objects["images/sprite.tga"] = []byte{0, 0, 2, 0}
	fake.objects["images/notes.bin"] = []byte("plain text")
	fake.objects["images/mislabeled.tga"] = []byte("qoif\x00\x00")

	for object, expected := range map[string]format.Format{
		"a.png":          format.Png,
		"sprite.tga":     format.Tga,
		"notes.bin":      format.Unknown,
		"mislabeled.tga": format.Qoi,
	} {
		t.Run(object, func(t *testing.T) {
			data, f, err := s.Retrieve(context.Background(), message.Location{Bucket: "images", Object: object})
			require.NoError(t, err)
			require.Equal(t, fake.objects["images/"+object], data)
			require.Equal(t, expected, f)
		})
	}

	_, _, err := s.Retrieve(context.Background(), message.Location{Bucket: "images", Object: "missing.png"})
	require.Error(t, err)
}

func TestRetrieveRejectsOversizedImages(t *testing.T) {
	s, fake := newTestStorage(t, Config{MaxObjectBytes: 8})
	fake.objects["images/small.png"] = []byte("\x89PNG\r\n\x1a\n")
	fake.objects["images/large.png"] = []byte("\x89PNG\r\n\x1a\n\x00")

	data, f, err := s.Retrieve(context.Background(), message.Location{Bucket: "images", Object: "small.png"})
	require.NoError(t, err)
	require.Len(t, data, 8)
	require.Equal(t, format.Png, f)

	_, _, err = s.Retrieve(context.Background(), message.Location{Bucket: "images", Object: "large.png"})
	require.ErrorIs(t, err, ErrObjectTooLarge)
}
