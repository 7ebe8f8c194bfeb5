package slot

import "time"

const (
	DefaultPutTimeout   = 360 * time.Second
	DefaultShareTimeout = 30 * 24 * time.Hour
	DefaultMediaURL     = "/media/http_upload"
)

// Settings is the slot engine's share of the service configuration.
type Settings struct {
	// URLBase replaces the request's scheme and host in generated URLs.
	URLBase string
	// ForceHTTPS rewrites http:// URLs to https:// after construction.
	ForceHTTPS bool
	// WebserverDownload points GET URLs at MediaURL and disables the
	// dynamic download endpoint.
	WebserverDownload bool
	MediaURL          string
	// PutTimeout is how long a reservation may wait for its upload.
	PutTimeout time.Duration
	// ShareTimeout is how long uploaded files are kept.
	ShareTimeout time.Duration
	// AddContentLength sets Content-Length on downloads.
	AddContentLength bool
}

func (s Settings) withDefaults() Settings {
	if s.PutTimeout <= 0 {
		s.PutTimeout = DefaultPutTimeout
	}
	if s.ShareTimeout <= 0 {
		s.ShareTimeout = DefaultShareTimeout
	}
	if s.MediaURL == "" {
		s.MediaURL = DefaultMediaURL
	}
	return s
}

func utcNow() time.Time {
	return time.Now().UTC()
}
