package maventa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// TokenStore persists tokens per profile between runs.
// Load returns nil without error when nothing is cached.
type TokenStore interface {
	Load(ctx context.Context, profile string) (*Token, error)
	Save(ctx context.Context, profile string, tok *Token) error
}

// FileStore keeps one JSON file per profile
type FileStore struct {
	Dir string
}

// NewFileStore creates a store writing into dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(profile string) string {
	return filepath.Join(s.Dir, "maventa_api_profile_"+profile+".json")
}

// Load reads the cached token for profile
func (s *FileStore) Load(_ context.Context, profile string) (*Token, error) {
	data, err := os.ReadFile(s.path(profile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("token file %s: %w", s.path(profile), err)
	}
	return &tok, nil
}

// Save writes tok with owner-only permissions
func (s *FileStore) Save(_ context.Context, profile string, tok *Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(profile), data, 0o600)
}

// RedisStore keeps tokens in Redis with a TTL matching the token lifetime
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis server at rawURL
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return &RedisStore{client: client, prefix: "finvoice-bridge:token:"}, nil
}

// Load reads the cached token for profile
func (s *RedisStore) Load(ctx context.Context, profile string) (*Token, error) {
	data, err := s.client.Get(ctx, s.prefix+profile).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Save stores tok until it expires
func (s *RedisStore) Save(ctx context.Context, profile string, tok *Token) error {
	ttl := time.Until(time.Unix(tok.ExpiresAt, 0))
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+profile, data, ttl).Err()
}

// Close releases the connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
