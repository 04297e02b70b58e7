package catalog

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store loads and saves catalogs by location.
type Store interface {
	Load(ctx context.Context, location string) (*File, error)
	Save(ctx context.Context, location string, f *File) error
}

// LocalStore keeps catalogs on the local filesystem.
type LocalStore struct{}

// Load parses the catalog at path.
func (LocalStore) Load(_ context.Context, path string) (*File, error) {
	return ParseFile(path)
}

// Save verifies and writes the catalog to path.
func (LocalStore) Save(_ context.Context, path string, f *File) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds the settings for an S3 compatible bucket (AWS, R2, MinIO).
type S3Config struct {
	Region          string
	Endpoint        string // empty for AWS
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store keeps catalogs in S3 compatible object storage. Locations use the
// s3://bucket/key form.
type S3Store struct {
	client S3API
}

// NewS3Store builds a store backed by a static-credential S3 client.
func NewS3Store(cfg S3Config) *S3Store {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return &S3Store{client: s3.New(opts)}
}

// NewS3StoreFromClient wraps an existing client.
func NewS3StoreFromClient(client S3API) *S3Store {
	return &S3Store{client: client}
}

// Load downloads and parses the catalog at location.
func (s *S3Store) Load(ctx context.Context, location string) (*File, error) {
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", location, err)
	}
	defer out.Body.Close()
	return Parse(out.Body)
}

// Save verifies and uploads the catalog to location.
func (s *S3Store) Save(ctx context.Context, location string, f *File) error {
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return err
	}
	data, err := Encode(f)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/x-gettext-translation; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", location, err)
	}
	return nil
}

// ParseS3Location splits s3://bucket/key into its parts.
func ParseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid location %q: %w", location, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid location %q: want s3://bucket/key", location)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("invalid location %q: missing object key", location)
	}
	return u.Host, key, nil
}

// Router dispatches s3:// locations to an S3 store and everything else to
// the local filesystem.
type Router struct {
	Local Store
	S3    Store // nil disables s3:// locations
}

// NewRouter returns a router with a local store and an optional S3 store.
func NewRouter(s3Store Store) *Router {
	return &Router{Local: LocalStore{}, S3: s3Store}
}

func (r *Router) pick(location string) (Store, error) {
	if strings.HasPrefix(location, "s3://") {
		if r.S3 == nil {
			return nil, fmt.Errorf("location %q needs S3 storage, which is not configured", location)
		}
		return r.S3, nil
	}
	return r.Local, nil
}

// Load implements Store.
func (r *Router) Load(ctx context.Context, location string) (*File, error) {
	st, err := r.pick(location)
	if err != nil {
		return nil, err
	}
	return st.Load(ctx, location)
}

// Save implements Store.
func (r *Router) Save(ctx context.Context, location string, f *File) error {
	st, err := r.pick(location)
	if err != nil {
		return err
	}
	return st.Save(ctx, location, f)
}

var (
	_ Store = LocalStore{}
	_ Store = (*S3Store)(nil)
	_ Store = (*Router)(nil)
)
