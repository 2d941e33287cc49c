package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/leapstack-labs/leapquery/internal/client"
	"github.com/leapstack-labs/leapquery/internal/result"
	"github.com/leapstack-labs/leapquery/pkg/format"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("endpoint must be an http or https URL, got %q", c.Endpoint)
		}
	}
	if _, err := client.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := result.ParseFormat(c.Output); err != nil {
		return err
	}
	if c.Format.MaxWidth != 0 && c.Format.MaxWidth < format.MinMaxWidth {
		return fmt.Errorf("format.max_width must be 0 or at least %d, got %d", format.MinMaxWidth, c.Format.MaxWidth)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative, got %d", c.PageSize)
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must not be negative, got %d", c.History.MaxEntries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// RequireEndpoint checks that an endpoint is configured.
func (c *Config) RequireEndpoint() error {
	if c.Endpoint == "" {
		return errors.New("no endpoint configured\nHint: Set endpoint in leapquery.yaml, LEAPQUERY_ENDPOINT or --endpoint")
	}
	return nil
}
