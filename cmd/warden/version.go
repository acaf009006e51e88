package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set by -ldflags at release time.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, rev, built := buildVersion()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "warden %s", v)
		if rev != "" {
			fmt.Fprintf(out, " commit %s", rev)
		}
		if built != "" {
			fmt.Fprintf(out, " built %s", built)
		}
		fmt.Fprintf(out, " (%s %s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

// buildVersion prefers ldflags values, then the module build info.
func buildVersion() (v, rev, built string) {
	v, rev, built = version, commit, date
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v, rev, built
	}
	if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if rev == "" && len(s.Value) >= 12 {
				rev = s.Value[:12]
			}
		case "vcs.time":
			if built == "" {
				built = s.Value
			}
		}
	}
	return v, rev, built
}
