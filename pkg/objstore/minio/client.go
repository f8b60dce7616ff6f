package minio

import (
	"context"
	"flag"
	"io"
	"mime"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	util_io "github.com/ValerySidorin/ytgrab/pkg/util/io"
)

const defaultContentType = "application/octet-stream"

var mediaContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".3gp":  "video/3gpp",
	".flv":  "video/x-flv",
}

type Config struct {
	Endpoint          string `yaml:"endpoint"`
	MinioRootUser     string `yaml:"minio_root_user"`
	MinioRootPassword string `yaml:"minio_root_password"`
	Region            string `yaml:"region"`
	Secure            bool   `yaml:"secure"`
}

func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Endpoint, prefix+"endpoint", "localhost:9000", "Minio endpoint (host:port).")
	f.StringVar(&c.MinioRootUser, prefix+"root-user", "", "Minio access key.")
	f.StringVar(&c.MinioRootPassword, prefix+"root-password", "", "Minio secret key.")
	f.StringVar(&c.Region, prefix+"region", "us-east-1", "Bucket region.")
	f.BoolVar(&c.Secure, prefix+"secure", false, "Use TLS to connect to minio.")
}

type MinioWriter struct {
	client *minio.Client
	bucket string
}

func NewWriter(ctx context.Context, cfg Config, bucket string) (*MinioWriter, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioRootUser, cfg.MinioRootPassword, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "initialize minio client for writer")
	}

	found, err := minioClient.BucketExists(ctx, bucket)
	if err != nil {
		return nil, errors.Wrap(err, "check minio bucket exists")
	}

	if !found {
		if err := minioClient.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, errors.Wrap(err, "make minio bucket")
		}
	}

	return &MinioWriter{
		client: minioClient,
		bucket: bucket,
	}, nil
}

func (c *MinioWriter) Store(ctx context.Context, objName string, r io.Reader) error {
	ext := path.Ext(objName)
	contentType, ok := mediaContentTypes[ext]
	if !ok {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	_, err := c.client.PutObject(ctx, c.bucket, objName, r, util_io.SizeOrUnknown(r), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return errors.Wrap(err, "store minio object")
	}

	return nil
}
