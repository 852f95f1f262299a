// Package resolver turns a public video page URL into a directly fetchable
// media stream URL for the supported platforms.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/mediagrab/api/internal/config"
	"github.com/mediagrab/api/internal/model"
)

// Platform is a supported source platform
type Platform string

const (
	PlatformYouTube     Platform = "youtube"
	PlatformVimeo       Platform = "vimeo"
	PlatformDailymotion Platform = "dailymotion"
)

var platformPatterns = []struct {
	platform Platform
	pattern  *regexp.Regexp
}{
	{PlatformYouTube, regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+$`)},
	{PlatformVimeo, regexp.MustCompile(`^(https?://)?(www\.)?vimeo\.com/.+$`)},
	{PlatformDailymotion, regexp.MustCompile(`^(https?://)?(www\.)?dailymotion\.com/.+$`)},
}

// Detect determines the platform a source URL belongs to.
func Detect(sourceURL string) (Platform, error) {
	for _, p := range platformPatterns {
		if p.pattern.MatchString(sourceURL) {
			return p.platform, nil
		}
	}
	return "", model.NewError(model.KindUnsupportedPlatform, "", fmt.Errorf("unsupported video platform: %s", sourceURL))
}

// ValidateURL reports whether sourceURL points at a supported platform.
func ValidateURL(sourceURL string) bool {
	_, err := Detect(sourceURL)
	return err == nil
}

// StreamResolver resolves streams for a single platform
type StreamResolver interface {
	ResolveStream(ctx context.Context, sourceURL string, tier model.QualityTier, kind model.MediaKind) (string, error)
}

// Resolver dispatches to the platform resolvers. Each platform sits behind
// its own circuit breaker and every call is bounded by a deadline.
type Resolver struct {
	resolvers map[Platform]StreamResolver
	breakers  map[Platform]*gobreaker.CircuitBreaker
	timeout   time.Duration
	log       *logrus.Logger
}

// New builds the default resolver set for YouTube, Vimeo and Dailymotion.
func New(cfg *config.PlatformsConfig, httpClient *http.Client, timeout time.Duration, log *logrus.Logger) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	r := NewWithResolvers(map[Platform]StreamResolver{
		PlatformYouTube:     NewYouTubeResolver(httpClient),
		PlatformVimeo:       NewVimeoResolver(httpClient, cfg.VimeoBaseURL),
		PlatformDailymotion: NewDailymotionResolver(httpClient, cfg.DailymotionBaseURL),
	}, timeout, log)
	r.configureBreakers(cfg.BreakerFailures, cfg.BreakerCooldown)

	return r
}

// NewWithResolvers builds a Resolver from explicit platform implementations.
func NewWithResolvers(resolvers map[Platform]StreamResolver, timeout time.Duration, log *logrus.Logger) *Resolver {
	r := &Resolver{
		resolvers: resolvers,
		breakers:  make(map[Platform]*gobreaker.CircuitBreaker),
		timeout:   timeout,
		log:       log,
	}
	r.configureBreakers(5, 30*time.Second)
	return r
}

func (r *Resolver) configureBreakers(failures int, cooldown time.Duration) {
	if failures <= 0 {
		failures = 5
	}
	for platform := range r.resolvers {
		platform := platform
		r.breakers[platform] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(platform),
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(failures)
			},
			// Bad input from a caller says nothing about upstream health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, model.ErrInvalidSourceURL)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if r.log != nil {
					r.log.WithFields(logrus.Fields{
						"platform": name,
						"from":     from.String(),
						"to":       to.String(),
					}).Warn("platform circuit breaker changed state")
				}
			},
		})
	}
}

// Resolve returns a fetchable stream URL for sourceURL.
func (r *Resolver) Resolve(ctx context.Context, sourceURL string, tier model.QualityTier, kind model.MediaKind) (string, error) {
	platform, err := Detect(sourceURL)
	if err != nil {
		return "", err
	}

	res, ok := r.resolvers[platform]
	if !ok {
		return "", model.NewError(model.KindUnsupportedPlatform, "", fmt.Errorf("no resolver for %s", platform))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := r.breakers[platform].Execute(func() (interface{}, error) {
		return res.ResolveStream(ctx, sourceURL, tier, kind)
	})
	if err != nil {
		if _, classified := model.KindOf(err); classified {
			return "", err
		}
		return "", model.NewError(model.KindExtractionFailed, string(platform), err)
	}

	streamURL, _ := out.(string)
	if streamURL == "" {
		return "", model.NewError(model.KindExtractionFailed, string(platform), errors.New("empty stream URL"))
	}

	return streamURL, nil
}
