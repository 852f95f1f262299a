package resolver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/mediagrab/api/internal/model"
)

// youtubeMetadata is the subset of *youtube.Client the resolver needs.
type youtubeMetadata interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

// YouTubeResolver picks a stream from the video's format list
type YouTubeResolver struct {
	client youtubeMetadata
}

func NewYouTubeResolver(httpClient *http.Client) *YouTubeResolver {
	return &YouTubeResolver{
		client: &youtube.Client{HTTPClient: httpClient},
	}
}

func (y *YouTubeResolver) ResolveStream(ctx context.Context, sourceURL string, tier model.QualityTier, kind model.MediaKind) (string, error) {
	video, err := y.client.GetVideoContext(ctx, sourceURL)
	if err != nil {
		if errors.Is(err, youtube.ErrInvalidCharactersInVideoID) || errors.Is(err, youtube.ErrVideoIDMinLength) {
			return "", model.NewError(model.KindInvalidSourceURL, "youtube", err)
		}
		return "", model.NewError(model.KindExtractionFailed, "youtube info", err)
	}

	format, err := SelectYouTubeFormat(video.Formats, tier, kind)
	if err != nil {
		return "", err
	}

	streamURL, err := y.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return "", model.NewError(model.KindExtractionFailed, "youtube stream url", err)
	}
	return streamURL, nil
}

// SelectYouTubeFormat chooses the variant to download:
//   - audio: highest bitrate audio-only stream, whatever the tier
//   - video, high: highest video quality, with or without audio
//   - video, standard: highest quality stream carrying both audio and video
func SelectYouTubeFormat(formats youtube.FormatList, tier model.QualityTier, kind model.MediaKind) (*youtube.Format, error) {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]

		var ok bool
		switch {
		case kind == model.MediaAudio:
			ok = isAudioOnly(f)
		case tier == model.TierHigh:
			ok = hasVideo(f)
		default:
			ok = hasVideo(f) && hasAudio(f)
		}
		if !ok {
			continue
		}

		if best == nil || better(f, best, kind) {
			best = f
		}
	}

	if best == nil {
		return nil, model.NewError(model.KindExtractionFailed, "youtube", errors.New("no such format found"))
	}
	return best, nil
}

func better(a, b *youtube.Format, kind model.MediaKind) bool {
	if kind == model.MediaAudio {
		return a.Bitrate > b.Bitrate
	}
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	return a.Bitrate > b.Bitrate
}

func hasVideo(f *youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "video/")
}

func hasAudio(f *youtube.Format) bool {
	return f.AudioChannels > 0
}

func isAudioOnly(f *youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "audio/")
}
