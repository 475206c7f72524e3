package rabbitmq

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var errEmptyURL = errors.New("rabbitmq: broker url is empty")

// sanitizeAMQPURL accepts the URL as it often arrives from .env files (quoted,
// padded, or still carrying its KEY= prefix) and returns a clean amqp(s) URL.
func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if clean == "" {
		return "", errEmptyURL
	}
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}

	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("rabbitmq: parse broker url: %w", err)
	}
	switch u.Scheme {
	case "amqp", "amqps":
		return clean, nil
	default:
		return "", fmt.Errorf("rabbitmq: unsupported scheme %q, want amqp or amqps", u.Scheme)
	}
}

// redactAMQPURL hides credentials before a URL is logged.
func redactAMQPURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}
