package commands

import (
	"easymap-backend/lib/towninfo"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manages the code table cache.",
}

const townCacheSuffix = "_town.json"

// cachedCounties lists the counties with a cached town table.
func cachedCounties(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var counties []string
	for _, e := range entries {
		county, ok := strings.CutSuffix(e.Name(), townCacheSuffix)
		if ok && !e.IsDir() && county != "" {
			counties = append(counties, county)
		}
	}
	return counties, nil
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [county...]",
	Short: "Removes cached town tables of the given counties, or every cached table when none are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := newRepository()
		if err != nil {
			return err
		}

		scopes := make([]towninfo.Scope, 0, len(args)+1)
		for _, county := range args {
			scopes = append(scopes, towninfo.TownScope(county))
		}
		if len(args) == 0 {
			counties, err := cachedCounties(repo.CacheDir())
			if err != nil {
				return err
			}
			scopes = append(scopes, towninfo.CountyScope())
			for _, county := range counties {
				scopes = append(scopes, towninfo.TownScope(county))
			}
		}

		for _, scope := range scopes {
			err := repo.ClearCache(scope)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared", filepath.Base(repo.CachePath(scope)))
		}
		return nil
	},
}
