package slot

import (
	"net/url"
	"strings"
)

// SharePath is the route prefix of the upload/download endpoint.
const SharePath = "/share"

// URLs are the two addresses handed out for a slot.
type URLs struct {
	Put string `json:"put"`
	Get string `json:"get"`
}

// BuildURLs derives both URLs from token and name. origin is the request's
// scheme and host, used unless a base URL is configured.
func (s Settings) BuildURLs(origin, token, name string) URLs {
	prefix := strings.TrimRight(origin, "/")
	if s.URLBase != "" {
		prefix = strings.TrimRight(s.URLBase, "/")
	}
	escaped := url.PathEscape(name)

	put := prefix + SharePath + "/" + token + "/" + escaped
	get := put
	if s.WebserverDownload {
		media := strings.TrimRight(s.MediaURL, "/") + "/" + token + "/" + escaped
		if u, err := url.Parse(media); err != nil || u.Host == "" {
			if !strings.HasPrefix(media, "/") {
				media = "/" + media
			}
			media = prefix + media
		}
		get = media
	}

	if s.ForceHTTPS {
		put = forceHTTPS(put)
		get = forceHTTPS(get)
	}
	return URLs{Put: put, Get: get}
}

func forceHTTPS(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
