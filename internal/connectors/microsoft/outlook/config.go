package outlook

import "strings"

// Config holds mail send options.
type Config struct {
	// SaveToSentItems keeps a copy in the user's Sent Items folder.
	SaveToSentItems bool
	// SendPath is appended to the discovered endpoint URI.
	SendPath string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SaveToSentItems: true,
		SendPath:        "/me/sendmail",
	}
}

// sendURL joins the discovered endpoint and the send path.
func (c *Config) sendURL(endpointURI string) string {
	path := c.SendPath
	if path == "" {
		path = DefaultConfig().SendPath
	}
	return strings.TrimSuffix(endpointURI, "/") + "/" + strings.TrimPrefix(path, "/")
}
