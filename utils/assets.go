// utils/assets.go
package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var r2Client *s3.Client
var r2Bucket string

// InitR2 configures the S3 client for the Cloudflare R2 bucket holding the
// asset pool manifests.
func InitR2() error {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	r2Bucket = os.Getenv("R2_BUCKET_NAME")

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to load R2 config: %w", err)
	}

	r2Client = s3.NewFromConfig(cfg)
	return nil
}

// R2AssetSource serves card content pools from JSON manifests stored in
// R2 under "asset-pools/<pool>.json". Manifests are reference data and
// immutable once published, so fetched pools are cached for the process
// lifetime.
type R2AssetSource struct {
	mu    sync.RWMutex
	cache map[string][]string
}

func NewR2AssetSource() *R2AssetSource {
	return &R2AssetSource{cache: make(map[string][]string)}
}

func (s *R2AssetSource) Assets(poolID string) ([]string, error) {
	s.mu.RLock()
	pool, ok := s.cache[poolID]
	s.mu.RUnlock()
	if ok {
		return pool, nil
	}

	key := fmt.Sprintf("asset-pools/%s.json", poolID)
	out, err := r2Client.GetObject(context.TODO(), &s3.GetObjectInput{
		Bucket: aws.String(r2Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset pool %q: %w", poolID, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset pool %q: %w", poolID, err)
	}

	var manifest struct {
		Assets []string `json:"assets"`
	}
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("invalid asset pool manifest %q: %w", poolID, err)
	}

	s.mu.Lock()
	s.cache[poolID] = manifest.Assets
	s.mu.Unlock()

	return manifest.Assets, nil
}
