package main

import (
	devenv "easymap-backend/dev/env"
	"easymap-backend/lib/configutil"
	"easymap-backend/lib/scrapers/easymap"
	"easymap-backend/lib/towninfo"
	"os"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	ListenPort      int     `json:"listen_port"`
	CacheDir        string  `json:"cache_dir"`
	Proxy           string  `json:"proxy"`
	TimeoutSeconds  int     `json:"timeout_seconds"`
	RegistryBaseURL string  `json:"registry_base_url"`
	PortalBaseURL   string  `json:"portal_base_url"`
	PortalRateLimit float64 `json:"portal_rate_limit"`
	Verbose         bool    `json:"verbose"`
}

const (
	defaultListenPort = 8000
	defaultCacheDir   = "<dev_state>/cache"
)

// loadConfig reads path, a missing file leaves every setting at its
// default. environment variables take precedence over the file.
func loadConfig(path string) (Config, error) {
	config, err := configutil.ReadConfig[Config](path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	if config.ListenPort == 0 {
		config.ListenPort = defaultListenPort
	}
	if config.CacheDir == "" {
		config.CacheDir = defaultCacheDir
	}
	if config.RegistryBaseURL == "" {
		config.RegistryBaseURL = towninfo.DefaultRegistryBaseURL
	}
	if config.PortalBaseURL == "" {
		config.PortalBaseURL = easymap.DefaultBaseURL
	}

	configutil.OverrideString(&config.Proxy, "EASYMAP_PROXY")
	configutil.OverrideString(&config.CacheDir, "EASYMAP_CACHE_DIR")
	configutil.OverrideInt(&config.ListenPort, "LANDNUMBER_PORT")

	return config, nil
}

func (c Config) timeout() time.Duration {
	return configutil.Seconds(c.TimeoutSeconds, easymap.DefaultTimeout)
}

func (c Config) repositoryOptions() (towninfo.RepositoryOptions, error) {
	dir, err := devenv.ResolvePath(c.CacheDir)
	if err != nil {
		return towninfo.RepositoryOptions{}, err
	}
	return towninfo.RepositoryOptions{
		CacheDir: dir,
		Registry: towninfo.NewNLSCRegistry(towninfo.RegistryOptions{
			BaseURL: c.RegistryBaseURL,
			Timeout: c.timeout(),
			Proxy:   c.Proxy,
		}),
	}, nil
}

func (c Config) sessionOptions() easymap.SessionOptions {
	return easymap.SessionOptions{
		BaseURL:   c.PortalBaseURL,
		Proxy:     c.Proxy,
		Timeout:   c.timeout(),
		RateLimit: rate.Limit(c.PortalRateLimit),
	}
}
