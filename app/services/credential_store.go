package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

const credentialKeyPrefix = "pagepilot:token:"

// CredentialStore resolves the access token of a destination
type CredentialStore interface {
	Token(ctx context.Context, destinationID string) (string, bool)
}

// Destination is one entry of the pages file
type Destination struct {
	ID          string `mapstructure:"id" json:"id"`
	Name        string `mapstructure:"name" json:"name"`
	AccessToken string `mapstructure:"access_token" json:"-"`
}

// FileCredentialStore reads destinations from a JSON, YAML or TOML file of the form
// {pages: [{id, name, access_token}]}. Resolved tokens are cached in redis when a client is given.
type FileCredentialStore struct {
	path     string
	rdb      *redis.Client
	cacheTTL time.Duration
	logger   *log.Logger

	mu    sync.RWMutex
	pages map[string]Destination
	order []string
}

// NewFileCredentialStore loads the pages file; rdb may be nil
func NewFileCredentialStore(path string, rdb *redis.Client, cacheTTL time.Duration, logger *log.Logger) (*FileCredentialStore, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	s := &FileCredentialStore{
		path:     path,
		rdb:      rdb,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the pages file and drops cached tokens
func (s *FileCredentialStore) Reload(ctx context.Context) error {
	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read credentials file %s: %w", s.path, err)
	}

	var entries []Destination
	if err := v.UnmarshalKey("pages", &entries); err != nil {
		return fmt.Errorf("failed to decode pages: %w", err)
	}

	pages := make(map[string]Destination, len(entries))
	order := make([]string, 0, len(entries))
	for i, e := range entries {
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" || e.AccessToken == "" {
			s.logger.Printf("credentials: skipping page entry %d without id or token", i)
			continue
		}
		if _, dup := pages[e.ID]; !dup {
			order = append(order, e.ID)
		}
		pages[e.ID] = e
	}

	s.mu.Lock()
	old := s.order
	s.pages = pages
	s.order = order
	s.mu.Unlock()

	if s.rdb != nil && len(old) > 0 {
		keys := make([]string, 0, len(old))
		for _, id := range old {
			keys = append(keys, credentialKeyPrefix+id)
		}
		if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
			s.logger.Printf("credentials: cache invalidation failed: %v", err)
		}
	}
	return nil
}

// Token returns the access token for a destination
func (s *FileCredentialStore) Token(ctx context.Context, destinationID string) (string, bool) {
	if s.rdb != nil {
		tok, err := s.rdb.Get(ctx, credentialKeyPrefix+destinationID).Result()
		if err == nil && tok != "" {
			return tok, true
		}
		if err != nil && err != redis.Nil {
			s.logger.Printf("credentials: cache read failed for destination=%s: %v", destinationID, err)
		}
	}

	s.mu.RLock()
	page, ok := s.pages[destinationID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, credentialKeyPrefix+destinationID, page.AccessToken, s.cacheTTL).Err(); err != nil {
			s.logger.Printf("credentials: cache write failed for destination=%s: %v", destinationID, err)
		}
	}
	return page.AccessToken, true
}

// Destinations lists configured destinations in file order
func (s *FileCredentialStore) Destinations() []Destination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Destination, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.pages[id])
	}
	return out
}

// StaticCredentialStore is an in-memory map of destination id to token
type StaticCredentialStore map[string]string

// Token implements CredentialStore
func (s StaticCredentialStore) Token(_ context.Context, destinationID string) (string, bool) {
	tok, ok := s[destinationID]
	return tok, ok && tok != ""
}
