package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Collector/internal/repo"
)

// NewMigrateCmd создаёт команду применения миграций БД.
func NewMigrateCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.Config()
			if err != nil {
				return err
			}

			version, err := repo.Migrate(cfg.DBURL)
			if err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Database at version %d", version))
			return nil
		},
	}
}
