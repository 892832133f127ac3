// Command gen3dict generates a Gen3 data dictionary from FHIR profiles or an
// HTAN JSON-LD model.
//
// Usage:
//
//	gen3dict transform --resources config.yaml --output schemas
//	gen3dict paths Patient --resources config.yaml
//	gen3dict valuesets load --bundle valuesets.json --curated
//	gen3dict htan --schema HTAN.model.jsonld --id bts:Patient
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gd "github.com/gofhir/gen3dict"
	"github.com/gofhir/gen3dict/config"
	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/spf13/cobra"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	settingsFile string
	logLevel     string
	fhirVersion  string
	profilesDir  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "gen3dict",
		Short:        "Generate Gen3 data dictionaries from FHIR profiles",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.settingsFile, "config", "", "Settings file (default ./gen3dict.yaml when present)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	root.PersistentFlags().StringVar(&g.profilesDir, "profiles", "", "Directory of offline StructureDefinitions consulted before fetching")
	root.PersistentFlags().StringVar(&g.fhirVersion, "fhir-version", string(gd.R4), "FHIR version of the base profiles: R4, R4B or R5")

	root.AddCommand(transformCmd(g))
	root.AddCommand(pathsCmd(g))
	root.AddCommand(valueSetsCmd(g))
	root.AddCommand(htanCmd(g))
	root.AddCommand(versionCmd())
	return root
}

// load reads the settings and installs the configured logger as default.
func (g *globals) load() (*config.Settings, *logger.Logger, error) {
	s, err := config.LoadSettings(g.settingsFile)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		s.Log.Level = g.logLevel
	}
	if g.profilesDir != "" {
		s.ProfilesDir = g.profilesDir
	}
	log := s.Logger(os.Stderr)
	logger.SetDefault(log)
	return s, log, nil
}

func (g *globals) version() (gd.FHIRVersion, error) {
	v := gd.FHIRVersion(g.fhirVersion)
	if !v.IsValid() {
		return "", fmt.Errorf("unsupported FHIR version %q", g.fhirVersion)
	}
	return v, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gen3dict %s\n", gd.Version)
		},
	}
}
