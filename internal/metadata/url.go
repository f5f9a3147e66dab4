package metadata

import (
	"net/url"
	"regexp"
	"strings"
)

var youtubeVideoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// NormalizeURL reduces a URL to its canonical comparison form: lowercase,
// no scheme, no "www." prefix, no trailing slash and no query string.
// YouTube links collapse to one canonical form per video, playlist or
// channel regardless of which of the many share URL shapes was stored.
// Unparseable input passes through lowercased; blank input yields "".
func NormalizeURL(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return ""
	}

	parsed, err := url.Parse(lowered)
	if err != nil {
		return lowered
	}
	if parsed.Host == "" {
		// Scheme-less input parses as a bare path. Re-parse with a scheme
		// so host and path split correctly.
		parsed, err = url.Parse("https://" + lowered)
		if err != nil || parsed.Host == "" {
			return lowered
		}
	}

	host := strings.TrimPrefix(parsed.Host, "www.")

	if isYouTubeHost(host) {
		return normalizeYouTubeURL(host, parsed)
	}

	return host + strings.TrimRight(parsed.Path, "/")
}

func isYouTubeHost(host string) bool {
	return host == "youtube.com" || host == "m.youtube.com" || host == "youtu.be"
}

func normalizeYouTubeURL(host string, parsed *url.URL) string {
	if id := youtubeVideoID(host, parsed); id != "" {
		return "youtube.com/watch?v=" + id
	}

	path := strings.TrimRight(parsed.Path, "/")

	if path == "/playlist" {
		if list := parsed.Query().Get("list"); list != "" {
			return "youtube.com/playlist?list=" + list
		}
	}

	segments := splitPath(path)
	if len(segments) > 0 {
		first := segments[0]
		if strings.HasPrefix(first, "@") {
			return "youtube.com/" + first
		}
		if (first == "channel" || first == "c" || first == "user") && len(segments) > 1 {
			return "youtube.com/" + first + "/" + segments[1]
		}
	}

	return "youtube.com" + path
}

// parseYouTube parses a URL, tolerating a missing scheme, and reports the
// normalized host when it belongs to YouTube.
func parseYouTube(raw string) (*url.URL, string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, "", false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, "", false
	}
	if parsed.Host == "" {
		parsed, err = url.Parse("https://" + trimmed)
		if err != nil || parsed.Host == "" {
			return nil, "", false
		}
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if !isYouTubeHost(host) {
		return nil, "", false
	}
	return parsed, host, true
}

// YouTubeVideoID extracts the 11-character video id from any of the known
// YouTube URL shapes, or returns "" when the URL is not a video link.
func YouTubeVideoID(raw string) string {
	parsed, host, ok := parseYouTube(raw)
	if !ok {
		return ""
	}
	return youtubeVideoID(host, parsed)
}

// YouTubePlaylistID extracts the playlist id from a YouTube playlist URL.
func YouTubePlaylistID(raw string) string {
	parsed, _, ok := parseYouTube(raw)
	if !ok {
		return ""
	}
	if strings.TrimRight(parsed.Path, "/") != "/playlist" {
		return ""
	}
	return parsed.Query().Get("list")
}

// youtubeListID pulls the list parameter from any YouTube URL, so watch
// links that also reference a playlist are covered too.
func youtubeListID(raw string) string {
	parsed, _, ok := parseYouTube(raw)
	if !ok {
		return ""
	}
	return parsed.Query().Get("list")
}

func youtubeVideoID(host string, parsed *url.URL) string {
	segments := splitPath(parsed.Path)

	if host == "youtu.be" {
		if len(segments) > 0 && youtubeVideoIDPattern.MatchString(segments[0]) {
			return segments[0]
		}
		return ""
	}

	if len(segments) == 0 {
		return ""
	}

	switch segments[0] {
	case "watch":
		if id := parsed.Query().Get("v"); youtubeVideoIDPattern.MatchString(id) {
			return id
		}
	case "embed", "v", "shorts", "live":
		if len(segments) > 1 && youtubeVideoIDPattern.MatchString(segments[1]) {
			return segments[1]
		}
	}
	return ""
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// URLSearchVariants expands a URL into the alternative spellings other
// records may have stored it under. The literal input always comes first;
// the rest covers scheme, "www." and trailing-slash permutations, and for
// YouTube links every known share URL shape for the same video or playlist.
func URLSearchVariants(raw string) []string {
	input := strings.TrimSpace(raw)
	if input == "" {
		return nil
	}

	variants := []string{input}

	if id := YouTubeVideoID(input); id != "" {
		variants = append(variants,
			"https://www.youtube.com/watch?v="+id,
			"https://youtube.com/watch?v="+id,
			"http://www.youtube.com/watch?v="+id,
			"http://youtube.com/watch?v="+id,
			"https://youtu.be/"+id,
			"http://youtu.be/"+id,
			"https://www.youtube.com/embed/"+id,
			"https://youtube.com/embed/"+id,
			"https://www.youtube.com/v/"+id,
			"https://www.youtube.com/shorts/"+id,
			"https://www.youtube.com/live/"+id,
			"https://m.youtube.com/watch?v="+id,
			id,
		)
		if list := youtubeListID(input); list != "" {
			variants = append(variants,
				"https://www.youtube.com/playlist?list="+list,
				"https://youtube.com/playlist?list="+list,
				list,
			)
		}
		return dedupeStrings(variants)
	}

	if list := YouTubePlaylistID(input); list != "" {
		variants = append(variants,
			"https://www.youtube.com/playlist?list="+list,
			"https://youtube.com/playlist?list="+list,
			list,
		)
		return dedupeStrings(variants)
	}

	base := NormalizeURL(input)
	if base == "" || !strings.Contains(base, ".") {
		return dedupeStrings(variants)
	}

	for _, scheme := range []string{"https://", "http://"} {
		for _, host := range []string{base, "www." + base} {
			variants = append(variants, scheme+host, scheme+host+"/")
		}
	}
	variants = append(variants, base)

	return dedupeStrings(variants)
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
