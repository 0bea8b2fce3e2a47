package commands

import (
	"easymap-backend/lib/landnumber"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <longitude> <latitude>",
	Short: "Prints the land number of a point as name(code).",
	Args:  cobra.ExactArgs(2),
	RunE:  runResolve,
}

func parseCoordinates(args []string) (x, y float64, err error) {
	x, err = strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", args[0])
	}
	y, err = strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", args[1])
	}
	return x, y, nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	x, y, err := parseCoordinates(args)
	if err != nil {
		return err
	}

	repo, err := newRepository()
	if err != nil {
		return err
	}
	resolver := landnumber.NewResolver(repo, sessionOptions())

	result, err := resolver.Resolve(cmd.Context(), x, y)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.String())
	return nil
}
