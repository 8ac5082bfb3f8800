package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"emotrack/internal/apiclient"
	"emotrack/internal/config"
	"emotrack/internal/preflight"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = fmt.Errorf("ensure directories: %w", err)
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiAddress prefers --api over the configured bind address.
func (c *commandContext) apiAddress() string {
	if value := flagValue(c.apiFlag); value != "" {
		return value
	}
	if cfg := c.configValue(); cfg != nil {
		return preflight.APIBaseURL(cfg)
	}
	return ""
}

func (c *commandContext) client() (*apiclient.Client, error) {
	token := ""
	if cfg := c.configValue(); cfg != nil {
		token = cfg.Paths.APIToken
	}
	client, err := apiclient.New(c.apiAddress(), token)
	if err != nil {
		return nil, c.wrapAPIError(err)
	}
	return client, nil
}

// wrapAPIError turns transport failures into an actionable message and leaves
// daemon error responses untouched.
func (c *commandContext) wrapAPIError(err error) error {
	if err == nil {
		return nil
	}
	if apiclient.IsUnavailable(err) {
		addr := c.apiAddress()
		if addr == "" {
			return errors.New("connect to daemon: paths.api_bind is not configured")
		}
		return fmt.Errorf("connect to daemon at %s: not running; start it with `emotrack start`", addr)
	}
	return err
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
