package commands

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/haivivi/omnicall/cmd/omnicall/commands.version=v1.2.3".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := version
		if v == "dev" {
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
				v = info.Main.Version
			}
		}
		info := map[string]string{
			"version": v,
			"go":      runtime.Version(),
			"os/arch": runtime.GOOS + "/" + runtime.GOARCH,
		}
		if outputJSON {
			return outputResult(info)
		}
		fmt.Printf("omnicall %s (%s %s)\n", v, info["go"], info["os/arch"])
		return nil
	},
}
