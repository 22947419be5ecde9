package main

import (
	"github.com/spf13/cobra"

	"github.com/NERVsystems/greenroute/pkg/config"
	"github.com/NERVsystems/greenroute/pkg/version"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
	jsonOutput bool
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "greenroute",
		Short:         "Compare the emissions, cost and health impact of trips",
		Long:          "greenroute rates walking, cycling, driving and transit trips by carbon emissions, fuel cost and calories, and serves the results over REST and MCP.",
		Version:       version.BuildVersion,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "path to a .env file (ignored when missing)")
	pf.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newMetricsCmd(opts),
		newCompareCmd(opts),
		newRecommendCmd(opts),
		newGasPriceCmd(opts),
		newGeocodeCmd(opts),
		newRouteCmd(opts),
		newVersionCmd(opts),
	)
	return cmd
}

const rootCmdExample = `  # Metrics for a 5 km drive priced in California
  greenroute metrics --distance 5000 --mode driving --country US --region CA

  # Compare every mode over 12 km
  greenroute compare --distance 12000

  # Fetch real routes between two points (needs MAPBOX_ACCESS_TOKEN)
  greenroute route --from -122.42,37.77 --to -122.27,37.80

  # Run the REST API and MCP endpoint
  greenroute serve --transport http`

// loadConfig reads the config file, .env file and environment.
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		return cfg, err
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := newRenderer(cmd, opts)
			if r.json {
				return r.JSON(version.Info())
			}
			return r.Line(version.String())
		},
	}
}
