// Package storage keeps images in an S3 compatible object store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"imgconv/format"
	"imgconv/internal/logger"
	"imgconv/internal/message"
)

// metadataFormat is the user metadata key holding the format name of a stored image.
const metadataFormat = "Format"

var (
	// ErrUnknownFormat happens when an image of unknown format is stored.
	ErrUnknownFormat = errors.New("unknown image format")

	// ErrObjectTooLarge happens when a retrieved object exceeds MaxObjectBytes.
	ErrObjectTooLarge = errors.New("object too large")
)

// Config
type Config struct {
	Endpoint  string `koanf:"endpoint"`
	UseSSL    bool   `koanf:"use_ssl"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`

	Region                 string `koanf:"region"`
	CreateBucketIfNotExist bool   `koanf:"create_bucket_if_not_exist"`

	// MaxObjectBytes bounds the size of a retrieved image, zero means no bound.
	MaxObjectBytes int64 `koanf:"max_object_bytes"`
}

// minioStorage
type minioStorage struct {
	config Config
	client *minio.Client

	log logger.Log
}

// NewMinioStorage
func NewMinioStorage(conf Config, log logger.Log) (*minioStorage, error) {
	l := log.WithFields(logger.Fields{
		logger.FieldPackage:  "storage",
		logger.FieldFunction: "NewMinioStorage",
	})

	minioClient, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseSSL,
		Region: conf.Region,
	})
	if err != nil {
		l.Error(err, "Failed to create a new minio client.")
		return nil, err
	}

	l.Info("Created a new minio storage client.")

	return &minioStorage{
		config: conf,
		client: minioClient,
		log:    log.WithField(logger.FieldPackage, "storage"),
	}, nil
}

// Store uploads data as an image of format f at loc, creating the bucket
// first when configured to. The object carries the media type of f and the
// format name in its metadata.
func (m *minioStorage) Store(ctx context.Context, loc message.Location, f format.Format, data []byte) error {
	log := m.log.WithFields(logger.Fields{
		logger.FieldFunction: "minioStorage.Store",
		"bucket":             loc.Bucket,
		"objectName":         loc.Object,
		"format":             f.String(),
	})

	if !f.Valid() {
		err := fmt.Errorf("%w: %s", ErrUnknownFormat, loc.Object)
		log.Error(err, "Refused to store an image of unknown format.")
		return err
	}

	if m.config.CreateBucketIfNotExist {
		if err := m.createBucket(ctx, loc.Bucket); err != nil {
			log.Error(err, "Failed to create a new bucket.")
			return err
		}
	}

	r := bytes.NewReader(data)
	_, err := m.client.PutObject(ctx, loc.Bucket, loc.Object, r, r.Size(), minio.PutObjectOptions{
		ContentType:  f.MIMEType(),
		UserMetadata: map[string]string{metadataFormat: f.String()},
	})
	if err != nil {
		log.Error(err, "Failed to store the object.")
		return err
	}

	log.Info("Uploaded a new image to the storage.")
	return nil
}

// Retrieve downloads the image at loc. The format is sniffed from the leading
// bytes, falling back to the object name extension for formats without a
// signature such as TGA. Unknown is returned when neither tells.
func (m *minioStorage) Retrieve(ctx context.Context, loc message.Location) ([]byte, format.Format, error) {
	log := m.log.WithFields(logger.Fields{
		logger.FieldFunction: "minioStorage.Retrieve",
		"bucket":             loc.Bucket,
		"objectName":         loc.Object,
	})

	stream, err := m.client.GetObject(ctx, loc.Bucket, loc.Object, minio.GetObjectOptions{})
	if err != nil {
		log.Error(err, "Failed to retrieve the object stream from the storage.")
		return nil, format.Unknown, err
	}
	defer stream.Close()

	var r io.Reader = stream
	if m.config.MaxObjectBytes > 0 {
		r = io.LimitReader(stream, m.config.MaxObjectBytes+1)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		log.Error(err, "Failed to read the object from the storage.")
		return nil, format.Unknown, err
	}

	if m.config.MaxObjectBytes > 0 && int64(buf.Len()) > m.config.MaxObjectBytes {
		err := fmt.Errorf("%w: %s/%s exceeds %d bytes", ErrObjectTooLarge, loc.Bucket, loc.Object, m.config.MaxObjectBytes)
		log.Error(err, "Refused to retrieve an oversized image.")
		return nil, format.Unknown, err
	}

	data := buf.Bytes()
	f := format.Guess(data)
	if f == format.Unknown {
		f = format.FromExtension(loc.Object)
	}

	log.WithField("format", f.String()).Info("Retrieved the image from the storage.")
	return data, f, nil
}

// createBucket
func (m *minioStorage) createBucket(ctx context.Context, bucket string) error {
	log := m.log.WithFields(logger.Fields{
		logger.FieldFunction: "minioStorage.createBucket",
		"bucket":             bucket,
	})

	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		log.Trace("Bucket already exist.")
		return nil
	}

	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.config.Region}); err != nil {
		return err
	}

	log.Info("A new bucket has been created.")
	return nil
}
