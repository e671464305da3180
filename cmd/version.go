package cmd

import (
	"context"
	"fmt"
	"runtime"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/geoloqi/geoloqi-go/geoloqi"
)

const repositorySlug = "geoloqi/geoloqi-go"

var (
	version   = "dev"
	buildTime = "unknown"
)

// SetVersion records the build information injected by main
func SetVersion(v, built string) {
	version = v
	buildTime = built
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipInit: "true"},
	RunE:        runVersion,
}

// selfUpdateCmd replaces the running binary with the latest release
var selfUpdateCmd = &cobra.Command{
	Use:         "self-update",
	Short:       "Update to the latest release",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipInit: "true"},
	RunE:        runSelfUpdate,
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("geoloqi %s (built %s, %s/%s)\n", version, buildTime, runtime.GOOS, runtime.GOARCH)
	fmt.Printf("client library %s, API version %d\n", geoloqi.Version, geoloqi.APIVersion)

	if v, err := semver.ParseTolerant(version); err == nil && len(v.Pre) > 0 {
		fmt.Println("This is a pre-release build")
	}
	return nil
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	current, err := semver.ParseTolerant(version)
	if err != nil {
		return fmt.Errorf("cannot self-update a %q build: %w", version, err)
	}

	ctx := context.Background()
	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repositorySlug))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s/%s could not be found", runtime.GOOS, runtime.GOARCH)
	}

	if latest.LessOrEqual(current.String()) {
		logger.Info().Str("version", current.String()).Msg("Already up to date")
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	logger.Info().
		Str("from", current.String()).
		Str("to", latest.Version()).
		Msg("Updating")

	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	logger.Info().Str("version", latest.Version()).Msg("Successfully updated")
	return nil
}
