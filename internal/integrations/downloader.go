package integrations

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/apigate-dev/restgateway/internal/config"
	"github.com/tidwall/gjson"
)

// Supported download platforms.
const (
	PlatformInstagram = "instagram"
	PlatformYouTube   = "youtube"
	PlatformSpotify   = "spotify"
	PlatformFacebook  = "facebook"
	PlatformThreads   = "threads"
)

// Platforms lists every supported platform.
var Platforms = []string{PlatformInstagram, PlatformYouTube, PlatformSpotify, PlatformFacebook, PlatformThreads}

// ErrUnsupportedPlatform is returned for platforms outside Platforms.
var ErrUnsupportedPlatform = errors.New("integrations: unsupported platform")

// Media is the normalized downloader result.
type Media struct {
	Platform  string      `json:"platform"`
	SourceURL string      `json:"source_url"`
	Title     string      `json:"title"`
	Author    string      `json:"author"`
	Thumbnail string      `json:"thumbnail"`
	Duration  int64       `json:"duration_seconds"`
	Downloads []MediaLink `json:"downloads"`
}

// MediaLink is one downloadable rendition.
type MediaLink struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// Downloader resolves a public media URL into downloadable links.
type Downloader interface {
	Fetch(ctx context.Context, platform, mediaURL string) Outcome[Media]
}

// SupportedPlatform reports whether platform is known.
func SupportedPlatform(platform string) bool {
	for _, p := range Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// ValidateMediaURL checks that raw is an absolute http(s) URL.
func ValidateMediaURL(raw string) error {
	u, errParse := url.Parse(strings.TrimSpace(raw))
	if errParse != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("integrations: url must be an absolute http(s) URL")
	}
	return nil
}

// HTTPDownloader calls an upstream resolver at {base}/{platform}?url=...
type HTTPDownloader struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDownloader builds a downloader from cfg. An empty base URL makes
// every fetch degrade to the demo fallback.
func NewHTTPDownloader(cfg config.IntegrationsConfig) *HTTPDownloader {
	return &HTTPDownloader{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.DownloaderBaseURL), "/"),
		client:  newHTTPClient(cfg.Timeout),
	}
}

// Fetch resolves mediaURL on platform.
func (d *HTTPDownloader) Fetch(ctx context.Context, platform, mediaURL string) Outcome[Media] {
	return observe("downloader", d.fetch(ctx, platform, mediaURL))
}

func (d *HTTPDownloader) fetch(ctx context.Context, platform, mediaURL string) Outcome[Media] {
	fallback := FallbackMedia(platform, mediaURL)
	if d.baseURL == "" {
		return Degrade(fallback, "downloader upstream is not configured")
	}

	reqCtx, cancel := withTimeout(ctx, d.client)
	defer cancel()
	endpoint := d.baseURL + "/" + url.PathEscape(platform) + "?url=" + url.QueryEscape(mediaURL)
	req, errReq := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if errReq != nil {
		return Degrade(fallback, errReq.Error())
	}
	req.Header.Set("Accept", "application/json")

	body, errDo := doRequest(d.client, req)
	if errDo != nil {
		return Degrade(fallback, errDo.Error())
	}
	media, ok := parseMedia(body, platform, mediaURL)
	if !ok {
		return Degrade(fallback, "upstream returned no downloadable media")
	}
	return Ok(media)
}

// parseMedia reshapes the upstream JSON. Resolvers disagree on layout, so
// each field is read from its known paths in order, then defaulted.
func parseMedia(body []byte, platform, mediaURL string) (Media, bool) {
	if !gjson.ValidBytes(body) {
		return Media{}, false
	}
	root := gjson.ParseBytes(body)
	if data := root.Get("data"); data.IsObject() {
		root = data
	} else if result := root.Get("result"); result.IsObject() {
		root = result
	}

	media := Media{
		Platform:  platform,
		SourceURL: mediaURL,
		Title:     firstString(root, "Untitled", "title", "caption", "name"),
		Author:    firstString(root, "unknown", "author", "owner.username", "uploader", "artist"),
		Thumbnail: firstString(root, "", "thumbnail", "thumb", "cover", "image"),
		Duration:  root.Get("duration").Int(),
	}

	for _, path := range []string{"downloads", "medias", "links", "formats"} {
		root.Get(path).ForEach(func(_, item gjson.Result) bool {
			link := firstString(item, "", "url", "link", "download_url")
			if link != "" {
				media.Downloads = append(media.Downloads, MediaLink{
					Quality: firstString(item, "default", "quality", "resolution", "label"),
					URL:     link,
				})
			}
			return true
		})
		if len(media.Downloads) > 0 {
			break
		}
	}
	if len(media.Downloads) == 0 {
		if link := firstString(root, "", "url", "download_url", "video"); link != "" {
			media.Downloads = []MediaLink{{Quality: "default", URL: link}}
		}
	}
	return media, len(media.Downloads) > 0
}

func firstString(r gjson.Result, def string, paths ...string) string {
	for _, path := range paths {
		if v := strings.TrimSpace(r.Get(path).String()); v != "" {
			return v
		}
	}
	return def
}

// FallbackMedia is the demo payload served when the upstream is unavailable.
func FallbackMedia(platform, mediaURL string) Media {
	return Media{
		Platform:  platform,
		SourceURL: mediaURL,
		Title:     "Demo " + platform + " media",
		Author:    "demo",
		Downloads: []MediaLink{{Quality: "demo", URL: "https://example.com/demo/" + platform + ".mp4"}},
	}
}
