package bindforge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Object key layout on the mirror:
//
//	toolchains/<name>-<version>.<ext>  prebuilt toolchain archives
//	bundles/<bundle>.tar.zst           published bundles (+ .json sidecars)
//	bundle-index.json                  index of published bundles

const mirrorIndexKey = "bundle-index.json"

// MirrorClient wraps the S3 client for any S3-compatible artifact mirror.
type MirrorClient struct {
	Client     *s3.Client
	BucketName string
}

// NewMirrorClient initializes a mirror client from configuration values.
func NewMirrorClient(cfg *Config) (*MirrorClient, error) {
	endpoint := cfg.MirrorURL
	accessKey := cfg.lookup("MIRROR_ACCESS_KEY_ID")
	secretKey := cfg.lookup("MIRROR_SECRET_ACCESS_KEY")
	bucketName := cfg.lookup("MIRROR_BUCKET")

	if endpoint == "" || accessKey == "" || secretKey == "" || bucketName == "" {
		return nil, fmt.Errorf("mirror credentials missing in configuration (MIRROR_ENDPOINT, MIRROR_ACCESS_KEY_ID, MIRROR_SECRET_ACCESS_KEY, MIRROR_BUCKET)")
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: endpoint}, nil
	})

	options := []func(*config.LoadOptions) error{
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion("auto"),
	}

	if Debug {
		options = append(options, config.WithClientLogMode(aws.LogSigning|aws.LogRetries|aws.LogRequest|aws.LogResponse))
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load mirror config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &MirrorClient{
		Client:     client,
		BucketName: bucketName,
	}, nil
}

// DownloadFile fetches an object from the mirror.
func (m *MirrorClient) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	output, err := m.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer output.Body.Close()

	return io.ReadAll(output.Body)
}

// FetchToolchain streams a prebuilt toolchain archive to destFile.
func (m *MirrorClient) FetchToolchain(ctx context.Context, name, destFile string) error {
	output, err := m.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.BucketName),
		Key:    aws.String("toolchains/" + name),
	})
	if err != nil {
		return err
	}
	defer output.Body.Close()

	if err := os.MkdirAll(filepath.Dir(destFile), 0o755); err != nil {
		return err
	}
	out, err := os.Create(destFile)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, output.Body); err != nil {
		_ = os.Remove(destFile)
		return err
	}
	return nil
}

// UploadLocalFile uploads a file from disk to the mirror.
func (m *MirrorClient) UploadLocalFile(ctx context.Context, key, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	contentType := "application/octet-stream"
	if strings.HasSuffix(key, ".zst") {
		contentType = "application/zstd"
	} else if strings.HasSuffix(key, ".json") {
		contentType = "application/json"
	}

	_, err = m.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.BucketName),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String(contentType),
	})
	return err
}

// UploadBytes uploads an in-memory object to the mirror.
func (m *MirrorClient) UploadBytes(ctx context.Context, key string, body []byte) error {
	contentType := "application/octet-stream"
	if strings.HasSuffix(key, ".json") {
		contentType = "application/json"
	}

	_, err := m.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	return err
}

// DeleteFile removes an object from the mirror.
func (m *MirrorClient) DeleteFile(ctx context.Context, key string) error {
	_, err := m.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.BucketName),
		Key:    aws.String(key),
	})
	return err
}

// MirrorObject represents metadata for an object on the mirror.
type MirrorObject struct {
	Key  string
	Size int64
}

// ListObjects returns the objects in the bucket with the given prefix.
func (m *MirrorClient) ListObjects(ctx context.Context, prefix string) ([]MirrorObject, error) {
	var objects []MirrorObject
	paginator := s3.NewListObjectsV2Paginator(m.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.BucketName),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			objects = append(objects, MirrorObject{
				Key:  *obj.Key,
				Size: *obj.Size,
			})
		}
	}
	return objects, nil
}

// FetchIndex downloads and parses the bundle index. A missing index is not
// an error; publishing starts from an empty one.
func (m *MirrorClient) FetchIndex(ctx context.Context) ([]BundleMetadata, error) {
	data, err := m.DownloadFile(ctx, mirrorIndexKey)
	if err != nil {
		debugf("Remote index not found or error fetching: %v\n", err)
		return nil, nil
	}
	var index []BundleMetadata
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse remote index: %w", err)
	}
	return index, nil
}

// PushIndex uploads the bundle index.
func (m *MirrorClient) PushIndex(ctx context.Context, index []BundleMetadata) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return m.UploadBytes(ctx, mirrorIndexKey, data)
}
