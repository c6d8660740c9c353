package main

import (
	"fmt"
	"os"

	"ctrlbx/app/cmd"
	"ctrlbx/app/util"
	"ctrlbx/app/util/mylog"

	"github.com/spf13/cobra"
	"go.szostok.io/version/extension"
)

func main() {
	mylog.Preinit()

	rootCmd := &cobra.Command{
		Use:   "ctrlbx",
		Short: "Admin console for the ctrlbx access control backend",
		PersistentPreRun: func(c *cobra.Command, _ []string) {
			fmt.Fprintln(c.ErrOrStderr(), util.Banner)
		},
	}
	cmd.Register(rootCmd)
	rootCmd.AddCommand(extension.NewVersionCobraCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
		return
	}
}
