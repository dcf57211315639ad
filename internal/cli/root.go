package cli

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/student-service/internal/app"
)

func Execute() error {
	return newRootCmd().Execute()
}

type rootOptions struct {
	configPath string
}

func (o *rootOptions) load() (app.Config, error) {
	return app.LoadConfig(o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "student-service",
		Short:         "Student records joined with the course service behind a circuit breaker",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (defaults to $CONFIG_PATH)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newConfigCmd(opts),
		newCourseCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}
