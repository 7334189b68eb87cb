package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

const (
	defaultStoreKeyPrefix = "jarvis:thread:"
	defaultStoreTTL       = 7 * 24 * time.Hour
	defaultMaxTranscript  = 512 << 10
	maxResponseSizeBytes  = 4 << 20
	scanBatchSize         = 100
)

var ErrResponseTooLarge = errors.New("redis response exceeds size limit")

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

// WithMaxTranscriptBytes caps the encoded transcript; older turns are
// dropped on Save until it fits. Non-positive values keep the default.
func WithMaxTranscriptBytes(n int) StoreOption {
	return func(s *UpstashRedisStore) {
		if n > 0 {
			s.maxTranscript = n
		}
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore persists thread transcripts in Upstash Redis via REST.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration

	maxTranscript int
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" split_words:"true" default:"168h"`

	MaxTranscriptBytes int `envconfig:"MAX_TRANSCRIPT_BYTES" split_words:"true" default:"524288"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultStoreTTL
	}

	store := &UpstashRedisStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultStoreKeyPrefix,
		ttl:        ttl,

		maxTranscript: defaultMaxTranscript,
	}
	if cfg.MaxTranscriptBytes > 0 {
		store.maxTranscript = cfg.MaxTranscriptBytes
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, threadID string) ([]*schema.Message, error) {
	key, err := s.redisKey(threadID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return []*schema.Message{}, nil
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode transcript payload: %w", err)
	}

	var messages []*schema.Message
	if err := json.Unmarshal([]byte(encoded), &messages); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	return messages, nil
}

func (s *UpstashRedisStore) Save(ctx context.Context, threadID string, messages []*schema.Message) error {
	key, err := s.redisKey(threadID)
	if err != nil {
		return err
	}

	payload, err := s.encodeTranscript(messages)
	if err != nil {
		return err
	}

	cmd := []any{"SET", key, string(payload)}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}

	_, err = s.exec(ctx, cmd)
	return err
}

func (s *UpstashRedisStore) Forget(ctx context.Context, threadID string) error {
	key, err := s.redisKey(threadID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"DEL", key})
	return err
}

// Clear deletes every transcript key under prefix with SCAN + DEL.
func (s *UpstashRedisStore) Clear(ctx context.Context, prefix string) error {
	pattern := escapeGlob(s.prefix()+prefix) + "*"
	cursor := "0"
	for {
		resp, err := s.exec(ctx, []any{"SCAN", cursor, "MATCH", pattern, "COUNT", scanBatchSize})
		if err != nil {
			return err
		}

		var page []json.RawMessage
		if err := json.Unmarshal(resp.Result, &page); err != nil || len(page) != 2 {
			return fmt.Errorf("decode scan result: %s", string(resp.Result))
		}
		var keys []string
		if err := json.Unmarshal(page[0], &cursor); err != nil {
			return fmt.Errorf("decode scan cursor: %w", err)
		}
		if err := json.Unmarshal(page[1], &keys); err != nil {
			return fmt.Errorf("decode scan keys: %w", err)
		}

		if len(keys) > 0 {
			cmd := make([]any, 0, len(keys)+1)
			cmd = append(cmd, "DEL")
			for _, k := range keys {
				cmd = append(cmd, k)
			}
			if _, err := s.exec(ctx, cmd); err != nil {
				return err
			}
		}
		if cursor == "0" {
			return nil
		}
	}
}

// encodeTranscript drops the oldest turns until the payload fits. The
// leading system and welcome messages are always kept, and a turn is only
// dropped whole so tool results never lose their calls.
func (s *UpstashRedisStore) encodeTranscript(messages []*schema.Message) ([]byte, error) {
	limit := s.maxTranscript
	if limit <= 0 {
		limit = defaultMaxTranscript
	}

	head := 0
	for head < len(messages) && messages[head].Role != schema.User {
		head++
	}
	kept := messages
	for {
		payload, err := json.Marshal(kept)
		if err != nil {
			return nil, fmt.Errorf("marshal transcript: %w", err)
		}
		if len(payload) <= limit {
			return payload, nil
		}

		next := -1
		for i := head + 1; i < len(kept); i++ {
			if kept[i].Role == schema.User {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("transcript of %d bytes exceeds limit %d", len(payload), limit)
		}
		trimmed := make([]*schema.Message, 0, len(kept)-(next-head))
		trimmed = append(trimmed, kept[:head]...)
		trimmed = append(trimmed, kept[next:]...)
		kept = trimmed
	}
}

func (s *UpstashRedisStore) prefix() string {
	if p := strings.TrimSpace(s.keyPrefix); p != "" {
		return p
	}
	return defaultStoreKeyPrefix
}

func (s *UpstashRedisStore) redisKey(threadID string) (string, error) {
	if strings.TrimSpace(threadID) == "" {
		return "", ErrInvalidThread
	}
	return s.prefix() + threadID, nil
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if s == nil {
		return nil, errors.New("nil store")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if len(raw) > maxResponseSizeBytes {
		return nil, ErrResponseTooLarge
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
