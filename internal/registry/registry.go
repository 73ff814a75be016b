// Package registry implements the process-wide TopicRegistry singleton
// of §4.7: one Log per topic name, created on first use and reused by
// every subsequent lookup.
package registry

import (
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stackwave/qlog/internal/commitlog"
	"github.com/stackwave/qlog/internal/errs"
	"github.com/stackwave/qlog/internal/topic"
)

// topicNamePattern bounds a topic name to a filesystem-safe identifier:
// letters, digits, dot, dash and underscore, 1-255 characters.
var topicNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,255}$`)

// ConfigFunc builds the per-topic commitlog.Config for a given topic
// name, letting callers vary segment size, retention, or flush policy
// by topic if they want to.
type ConfigFunc func(name string) commitlog.Config

// Registry is the process-wide topic table.
type Registry struct {
	mu sync.Mutex

	baseDir          string
	configFn         ConfigFunc
	heartbeatTimeout time.Duration
	logger           *zap.Logger

	topics map[string]*topic.Topic
}

// New returns an empty registry rooted at baseDir. configFn supplies
// the commitlog.Config for each topic the first time it is requested.
func New(baseDir string, configFn ConfigFunc, heartbeatTimeout time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		baseDir:          baseDir,
		configFn:         configFn,
		heartbeatTimeout: heartbeatTimeout,
		logger:           logger.Named("registry"),
		topics:           make(map[string]*topic.Topic),
	}
}

// GetOrCreate returns the Topic for name, opening it on disk the first
// time it is requested. Subsequent calls for the same name return the
// same *topic.Topic.
func (r *Registry) GetOrCreate(name string) (*topic.Topic, error) {
	if !topicNamePattern.MatchString(name) {
		return nil, errs.New(errs.InvalidTopicName, "topic name is invalid").WithTopic(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.topics[name]; ok {
		return t, nil
	}

	dir := filepath.Join(r.baseDir, name)
	cfg := r.configFn(name)
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}

	t, err := topic.Open(name, dir, cfg, r.heartbeatTimeout, r.logger)
	if err != nil {
		return nil, err
	}
	r.topics[name] = t
	return t, nil
}

// Get returns the Topic for name without creating it, reporting
// ok=false if it has not yet been created.
func (r *Registry) Get(name string) (*topic.Topic, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[name]
	return t, ok
}

// Topics returns a snapshot of every topic currently open.
func (r *Registry) Topics() []*topic.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*topic.Topic, 0, len(r.topics))
	for _, t := range r.topics {
		out = append(out, t)
	}
	return out
}

// CloseAll closes every topic's log concurrently - each topic stops its
// own background flush task independently, so there is no reason to
// serialize the shutdown. errgroup collects the first error while still
// letting every other topic finish closing.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	topics := make([]*topic.Topic, 0, len(r.topics))
	for _, t := range r.topics {
		topics = append(topics, t)
	}
	r.mu.Unlock()

	var g errgroup.Group
	for _, t := range topics {
		t := t
		g.Go(func() error {
			return t.Close()
		})
	}
	return g.Wait()
}
