package cmd

import (
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Show server identification and session user",
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd.OutOrStdout())
	env, err := newEnvironment(cmd.Context(), out)
	if err != nil {
		return err
	}

	info := env.Server()
	if info == nil {
		out.println("connected, but the server did not identify itself")
		return nil
	}
	out.header(info.Name)
	out.printf("Version: %s\n", info.Version)
	if info.UserID != 0 {
		out.printf("User id: %d (access level %d)\n", info.UserID, info.Access)
	} else {
		out.println("Not authenticated")
	}
	return nil
}
