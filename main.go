package main

import (
	"fmt"
	"net/netip"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	logLevel   string
	variant    string
	flags      Config
}

var opts = options{flags: *DefaultConfig()}

var rootCmd = &cobra.Command{
	Use:               "xt_geoip_build [flags] FILE...",
	Short:             "Convert ipinfo.io/db-ip.com/ipapi.is/MaxMind legacy CSV databases to xt_geoip binary files",
	Args:              cobra.MinimumNArgs(1),
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	RunE:              runBuild,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup ADDRESS...",
	Short: "Look up addresses in an already built directory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLookup,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve country lookups over HTTP from an already built directory",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var legacyCmd = &cobra.Command{
	Use:   "legacy-csv IN OUT",
	Short: "Convert an ipinfo.io country.csv to the legacy MaxMind CSV layout",
	Args:  cobra.ExactArgs(2),
	RunE:  runLegacy,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML config file")
	pf.StringVar(&opts.logLevel, "log-level", opts.flags.LogLevel, "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.flags.TargetDir, "target-dir", "D", opts.flags.TargetDir, "target directory")

	f := rootCmd.Flags()
	f.BoolVarP(&opts.flags.NativeOnly, "native-only", "n", false, "emit only the host's byte order")
	f.BoolVar(&opts.flags.IgnoreFirstRow, "ignore-first-row", false, "ignore the first row of CSV files with no known format")
	f.IntVar(&opts.flags.StartIPCol, "start-ip-col", opts.flags.StartIPCol, "column index for start IP")
	f.IntVar(&opts.flags.EndIPCol, "end-ip-col", opts.flags.EndIPCol, "column index for end IP")
	f.IntVar(&opts.flags.CountryCodeCol, "country-code-col", opts.flags.CountryCodeCol, "column index for country code")

	for _, cmd := range []*cobra.Command{lookupCmd, serveCmd} {
		cmd.Flags().StringVar(&opts.variant, "variant", "", "LE or BE directory to read (default: host byte order)")
	}
	serveCmd.Flags().StringVar(&opts.flags.Listen, "listen", opts.flags.Listen, "HTTP listen address")

	rootCmd.AddCommand(lookupCmd, serveCmd, legacyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	logrus.SetLevel(level)
	return nil
}

// loadConfig layers flags the user set explicitly over the config file.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	conf := DefaultConfig()
	if opts.configPath != "" {
		var err error
		conf, err = ParseConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("log-level") {
		conf.LogLevel = opts.logLevel
	}
	if changed("target-dir") {
		conf.TargetDir = opts.flags.TargetDir
	}
	if changed("native-only") {
		conf.NativeOnly = opts.flags.NativeOnly
	}
	if changed("ignore-first-row") {
		conf.IgnoreFirstRow = opts.flags.IgnoreFirstRow
	}
	if changed("start-ip-col") {
		conf.StartIPCol = opts.flags.StartIPCol
	}
	if changed("end-ip-col") {
		conf.EndIPCol = opts.flags.EndIPCol
	}
	if changed("country-code-col") {
		conf.CountryCodeCol = opts.flags.CountryCodeCol
	}
	if changed("listen") {
		conf.Listen = opts.flags.Listen
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return Build(conf, args)
}

// Build collects every file in order into one accumulator and emits it
// under conf.TargetDir.
func Build(conf *Config, files []string) error {
	variants, err := SelectVariants(conf.NativeOnly)
	if err != nil {
		return err
	}
	if err := PrepareTarget(conf.TargetDir, variants); err != nil {
		return err
	}

	collectOpts := CollectOptions{
		Columns:        conf.Columns(),
		IgnoreFirstRow: conf.IgnoreFirstRow,
	}
	acc := NewAccumulator()
	for _, file := range files {
		if err := CollectFile(file, acc, collectOpts); err != nil {
			return err
		}
	}

	return Emit(conf.TargetDir, acc, variants)
}

// resolveVariant picks the named variant, or the host's one when name is empty.
func resolveVariant(name string) (Variant, error) {
	if name != "" {
		return VariantByName(name)
	}
	native, err := SelectVariants(true)
	if err != nil {
		return Variant{}, err
	}
	return native[0], nil
}

func openDatabase(conf *Config) (*Database, error) {
	v, err := resolveVariant(opts.variant)
	if err != nil {
		return nil, err
	}
	return LoadDatabase(conf.TargetDir, v)
}

func runLookup(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := openDatabase(conf)
	if err != nil {
		return err
	}

	for _, arg := range args {
		addr, err := netip.ParseAddr(arg)
		if err != nil {
			return errors.Wrapf(err, "unable to parse address %q", arg)
		}
		code, ok := db.FindCountry(addr)
		if !ok {
			code = "unknown"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", addr, code)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := openDatabase(conf)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	return NewServer(conf, db).Run()
}

func runLegacy(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return ConvertLegacyCSVFile(args[0], args[1])
}
