package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/mediagrab/api/internal/model"
)

var dailymotionIDPattern = regexp.MustCompile(`dailymotion\.com/video/([a-zA-Z0-9]+)`)

const dailymotionFallbackQuality = "720"

// DailymotionSource is one stream of a quality entry
type DailymotionSource struct {
	Type string `json:"type,omitempty"`
	URL  string `json:"url"`
}

type dailymotionMetadata struct {
	Qualities map[string][]DailymotionSource `json:"qualities"`
}

// DailymotionResolver reads the quality map from the player metadata
type DailymotionResolver struct {
	httpClient *http.Client
	baseURL    string
}

func NewDailymotionResolver(httpClient *http.Client, baseURL string) *DailymotionResolver {
	return &DailymotionResolver{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (d *DailymotionResolver) ResolveStream(ctx context.Context, sourceURL string, tier model.QualityTier, kind model.MediaKind) (string, error) {
	m := dailymotionIDPattern.FindStringSubmatch(sourceURL)
	if m == nil {
		return "", model.NewError(model.KindInvalidSourceURL, "", errors.New("invalid Dailymotion URL"))
	}

	var meta dailymotionMetadata
	endpoint := fmt.Sprintf("%s/player/metadata/video/%s", d.baseURL, m[1])
	if err := getJSON(ctx, d.httpClient, "dailymotion metadata", endpoint, &meta); err != nil {
		return "", err
	}

	return SelectDailymotionStream(meta.Qualities, tier, kind)
}

// SelectDailymotionStream indexes the quality map by 1080/720 for video and
// 240 for audio, falling back to 720 when the key is missing.
func SelectDailymotionStream(qualities map[string][]DailymotionSource, tier model.QualityTier, kind model.MediaKind) (string, error) {
	key := "720"
	switch {
	case kind == model.MediaAudio:
		key = "240"
	case tier == model.TierHigh:
		key = "1080"
	}

	if u := firstURL(qualities[key]); u != "" {
		return u, nil
	}
	if u := firstURL(qualities[dailymotionFallbackQuality]); u != "" {
		return u, nil
	}
	return "", model.NewError(model.KindExtractionFailed, "dailymotion metadata",
		fmt.Errorf("no stream for quality %s or %s", key, dailymotionFallbackQuality))
}

func firstURL(sources []DailymotionSource) string {
	if len(sources) == 0 {
		return ""
	}
	return sources[0].URL
}
