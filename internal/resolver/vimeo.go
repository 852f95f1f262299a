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

var vimeoIDPattern = regexp.MustCompile(`vimeo\.com/(\d+)`)

// VimeoFile is one entry of the player's progressive file list
type VimeoFile struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

type vimeoConfig struct {
	Request struct {
		Files struct {
			Progressive []VimeoFile `json:"progressive"`
		} `json:"files"`
	} `json:"request"`
}

// VimeoResolver reads progressive files from the Vimeo player config
type VimeoResolver struct {
	httpClient *http.Client
	baseURL    string
}

func NewVimeoResolver(httpClient *http.Client, baseURL string) *VimeoResolver {
	return &VimeoResolver{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (v *VimeoResolver) ResolveStream(ctx context.Context, sourceURL string, tier model.QualityTier, kind model.MediaKind) (string, error) {
	m := vimeoIDPattern.FindStringSubmatch(sourceURL)
	if m == nil {
		return "", model.NewError(model.KindInvalidSourceURL, "", errors.New("invalid Vimeo URL"))
	}

	var cfg vimeoConfig
	endpoint := fmt.Sprintf("%s/video/%s/config", v.baseURL, m[1])
	if err := getJSON(ctx, v.httpClient, "vimeo config", endpoint, &cfg); err != nil {
		return "", err
	}

	file, err := SelectVimeoFile(cfg.Request.Files.Progressive, tier, kind)
	if err != nil {
		return "", err
	}
	return file.URL, nil
}

// SelectVimeoFile picks 1080p (high) or 720p (standard), falling back to the
// first entry. Vimeo has no audio-only stream, so audio takes the last,
// lowest quality entry.
func SelectVimeoFile(files []VimeoFile, tier model.QualityTier, kind model.MediaKind) (VimeoFile, error) {
	if len(files) == 0 {
		return VimeoFile{}, model.NewError(model.KindExtractionFailed, "vimeo config", errors.New("no progressive files"))
	}

	if kind == model.MediaAudio {
		return files[len(files)-1], nil
	}

	want := "720p"
	if tier == model.TierHigh {
		want = "1080p"
	}
	for _, f := range files {
		if f.Quality == want {
			return f, nil
		}
	}
	return files[0], nil
}
