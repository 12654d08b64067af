package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	s3Client "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/comoco/mysqldump/storage"
)

func NewS3(bucket, key, region, accessKeyId, secretAccessKey, sessionToken string) *S3 {
	return &S3{
		Bucket:          bucket,
		Key:             key,
		Region:          region,
		AccessKeyId:     accessKeyId,
		SecretAccessKey: secretAccessKey,
		SessionToken:    sessionToken,
	}
}

type S3 struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	AccessKeyId     string `yaml:"access-key-id"`
	SecretAccessKey string `yaml:"secret-access-key"`
	SessionToken    string `yaml:"session-token"`
	// Endpoint points the client at an S3 compatible service, path style addressing is used.
	Endpoint string `yaml:"endpoint"`
}

func (s3 *S3) createClient(ctx context.Context) (*s3Client.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if s3.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s3.Region))
	}

	if s3.AccessKeyId != "" && s3.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3.AccessKeyId, s3.SecretAccessKey, s3.SessionToken),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3Client.NewFromConfig(cfg, func(o *s3Client.Options) {
		if s3.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (s3 *S3) Save(reader io.Reader, pathGenerator storage.PathGeneratorFunc) error {
	ctx := context.Background()

	client, err := s3.createClient(ctx)
	if err != nil {
		return err
	}

	uploader := manager.NewUploader(client)
	key := pathGenerator(s3.Key)

	_, err = uploader.Upload(ctx, &s3Client.PutObjectInput{
		Bucket: aws.String(s3.Bucket),
		Key:    aws.String(key),
		Body:   reader,
	})

	if err != nil {
		return fmt.Errorf("failed to upload file to s3 bucket %w", err)
	}

	slog.Debug("uploaded dump to s3", slog.String("bucket", s3.Bucket), slog.String("key", key))

	return nil
}

// GetContent downloads the object at Key, used to read job files kept in S3.
func (s3 *S3) GetContent(ctx context.Context) ([]byte, error) {
	client, err := s3.createClient(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.GetObject(ctx, &s3Client.GetObjectInput{
		Bucket: aws.String(s3.Bucket),
		Key:    aws.String(s3.Key),
	})

	if err != nil {
		return nil, fmt.Errorf("unable to fetch s3 content: %w", err)
	}

	defer func() {
		if err := result.Body.Close(); err != nil {
			slog.Error("failed to close s3 object body", slog.Any("error", err))
		}
	}()

	return io.ReadAll(result.Body)
}
