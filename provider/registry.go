package provider

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pitchcast/pitch-orchestrator/config"
)

// Registry resolves a capability and a requested provider name to a live
// instance, walking the configured fallback chain when the requested
// provider cannot be constructed. At most one live instance exists per
// provider name and capability; construction is serialized under mu.
type Registry struct {
	cfg *config.Config
	log *logrus.Logger

	mu    sync.Mutex
	text  map[string]TextProvider
	tts   map[string]TTSProvider
	video map[string]VideoProvider
}

// NewRegistry returns a registry backed by cfg. Providers are constructed
// lazily on first use.
func NewRegistry(cfg *config.Config, log *logrus.Logger) *Registry {
	return &Registry{
		cfg:   cfg,
		log:   log,
		text:  map[string]TextProvider{},
		tts:   map[string]TTSProvider{},
		video: map[string]VideoProvider{},
	}
}

// Text returns a text provider. An empty name selects the configured
// default.
func (r *Registry) Text(name string) (TextProvider, error) {
	if name == "" {
		name = r.cfg.TextProvider
	}
	return resolve(r, Text, name, r.cfg.TextFallback, textFactories, r.text)
}

// TTS returns a TTS provider. An empty name selects the configured default.
func (r *Registry) TTS(name string) (TTSProvider, error) {
	if name == "" {
		name = r.cfg.TTSProvider
	}
	return resolve(r, TTS, name, r.cfg.TTSFallback, ttsFactories, r.tts)
}

// Video returns a video provider. An empty name selects the configured
// default.
func (r *Registry) Video(name string) (VideoProvider, error) {
	if name == "" {
		name = r.cfg.VideoProvider
	}
	return resolve(r, Video, name, r.cfg.VideoFallback, videoFactories, r.video)
}

type closer interface {
	Close() error
}

// resolve walks [name] + fallback (deduplicated, first match wins), reusing
// cached instances and attempting construction otherwise. Candidates whose
// factories fail are logged and skipped; the chain failing as a whole yields
// an ExhaustedError naming every candidate tried.
func resolve[T closer](
	r *Registry,
	cap Capability,
	name string,
	fallback []string,
	factories map[string]func(*config.Config) (T, error),
	instances map[string]T,
) (T, error) {
	var zero T
	name = strings.ToLower(name)

	chain := make([]string, 0, 1+len(fallback))
	chain = append(chain, name)
	for _, fb := range fallback {
		if fb != name {
			chain = append(chain, fb)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, candidate := range chain {
		if p, ok := instances[candidate]; ok {
			r.warnFallback(cap, name, candidate)
			return p, nil
		}
		factory, ok := factories[candidate]
		if !ok {
			r.log.WithFields(logrus.Fields{
				"capability": cap,
				"provider":   candidate,
			}).Debug("provider not registered")
			continue
		}
		p, err := factory(r.cfg)
		if err != nil {
			lastErr = err
			r.log.WithFields(logrus.Fields{
				"capability": cap,
				"provider":   candidate,
			}).WithError(err).Warn("provider construction failed")
			continue
		}
		instances[candidate] = p
		r.warnFallback(cap, name, candidate)
		return p, nil
	}
	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return zero, &ExhaustedError{Capability: cap, Tried: chain, Last: lastErr}
}

// warnFallback logs every resolution that did not land on the requested
// provider, whether the selected instance was freshly built or cached.
func (r *Registry) warnFallback(cap Capability, requested, selected string) {
	if selected == requested {
		return
	}
	r.log.WithFields(logrus.Fields{
		"capability": cap,
		"requested":  requested,
		"selected":   selected,
	}).Warn("using fallback provider")
}

// CloseAll releases every cached instance and clears the caches. Safe to
// call repeatedly and with nothing cached. Close errors are logged, not
// returned; a subsequent resolve constructs fresh instances.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.text {
		r.closeOne(Text, name, p)
	}
	for name, p := range r.tts {
		r.closeOne(TTS, name, p)
	}
	for name, p := range r.video {
		r.closeOne(Video, name, p)
	}
	r.text = map[string]TextProvider{}
	r.tts = map[string]TTSProvider{}
	r.video = map[string]VideoProvider{}
}

func (r *Registry) closeOne(cap Capability, name string, c closer) {
	if err := c.Close(); err != nil {
		r.log.WithFields(logrus.Fields{
			"capability": cap,
			"provider":   name,
		}).WithError(err).Warn("closing provider")
	}
}
