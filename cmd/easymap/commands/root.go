package commands

import (
	"context"
	devenv "easymap-backend/dev/env"
	"easymap-backend/lib/restyutil"
	"easymap-backend/lib/scrapers/easymap"
	"easymap-backend/lib/telemetry"
	"easymap-backend/lib/towninfo"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	cacheDir    string
	proxy       string
	timeout     time.Duration
	verbose     bool
	portalURL   string
	registryURL string
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "easymap [<longitude> <latitude>]",
	Short: "easymap resolves coordinates in taiwan into land numbers.",
	Args:  orNone(cobra.ExactArgs(2)),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(flags.verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runResolve(cmd, args)
	},
	SilenceUsage: true,
}

func init() {
	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&flags.cacheDir, "cache-dir", defaultCacheDir, "The directory code tables are cached in.")
	persistent.StringVar(&flags.proxy, "proxy", "", "The proxy to reach the portal through, defaults to $EASYMAP_PROXY.")
	persistent.DurationVar(&flags.timeout, "timeout", easymap.DefaultTimeout, "The timeout of each outbound request.")
	persistent.BoolVarP(&flags.verbose, "verbose", "v", false, "Log debug output and dump portal exchanges to .dev/resty/easymap.")
	persistent.StringVar(&flags.portalURL, "portal-url", easymap.DefaultBaseURL, "The base url of the portal.")
	persistent.StringVar(&flags.registryURL, "registry-url", towninfo.DefaultRegistryBaseURL, "The base url of the code registry.")
	persistent.MarkHidden("portal-url")
	persistent.MarkHidden("registry-url")
}

// orNone accepts no arguments at all or whatever check accepts.
func orNone(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return nil
		}
		return check(cmd, args)
	}
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func proxy() string {
	if flags.proxy != "" {
		return flags.proxy
	}
	return os.Getenv("EASYMAP_PROXY")
}

const defaultCacheDir = "<dev_state>/cache"

// cacheDir resolves --cache-dir, outside of a workspace the default falls
// back to the user cache directory.
func cacheDir() (string, error) {
	dir, err := devenv.ResolvePath(flags.cacheDir)
	if err == nil || flags.cacheDir != defaultCacheDir {
		return dir, err
	}
	userCache, cacheErr := os.UserCacheDir()
	if cacheErr != nil {
		return "", err
	}
	return filepath.Join(userCache, "easymap"), nil
}

func newRepository() (*towninfo.Repository, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return towninfo.NewRepository(towninfo.RepositoryOptions{
		CacheDir: dir,
		Registry: towninfo.NewNLSCRegistry(towninfo.RegistryOptions{
			BaseURL: flags.registryURL,
			Timeout: flags.timeout,
			Proxy:   proxy(),
		}),
	})
}

func sessionOptions() easymap.SessionOptions {
	opts := easymap.SessionOptions{
		BaseURL: flags.portalURL,
		Proxy:   proxy(),
		Timeout: flags.timeout,
	}
	if flags.verbose {
		output, err := restyutil.NewFilesystemOutput(".dev/resty/easymap")
		if err != nil {
			slog.Warn("portal exchanges will not be dumped", "err", err)
			return opts
		}
		opts.DumpOutput = output
	}
	return opts
}
