package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SpacesService resolves video object keys into public CDN URLs on
// DigitalOcean Spaces.
type SpacesService struct {
	client    *s3.Client
	bucket    string
	region    string
	VideoRoot string
}

func NewSpacesService(spacesKey, spacesSecret, region, bucket, videoRoot string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return &SpacesService{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		region:    region,
		VideoRoot: strings.TrimPrefix(videoRoot, "/"),
	}, nil
}

// VideoURL builds the CDN URL for a stored clip. Catalog rows may hold a
// fully qualified URL for externally hosted clips; those are served as-is.
func (s *SpacesService) VideoURL(location string) string {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return location
	}
	location = strings.TrimPrefix(location, "/")
	if s.VideoRoot != "" {
		location = s.VideoRoot + "/" + location
	}
	return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s", s.bucket, s.region, location)
}

// HealthCheck verifies the bucket is reachable with the configured
// credentials.
func (s *SpacesService) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: &s.bucket,
	})
	if err != nil {
		return fmt.Errorf("spaces bucket %s unreachable: %w", s.bucket, err)
	}
	return nil
}

func (s *SpacesService) GetBucket() string {
	return s.bucket
}

func (s *SpacesService) GetRegion() string {
	return s.region
}
