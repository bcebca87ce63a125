package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/presshq/press/internal/config"
	"github.com/presshq/press/internal/utils"
	"github.com/presshq/press/internal/writer"
)

const (
	rollbackUse              = "rollback"
	rollbackShortDescription = "undo the changes made by the last run"
	rollbackLongDescription  = `Restore files mutated by the last run from their backups and delete
files the run created. The rollback record itself is removed afterwards.`
)

// createRollbackCommand returns the rollback subcommand.
func createRollbackCommand() *cobra.Command {
	var outputDirectory string

	rollbackCommand := &cobra.Command{
		Use:   rollbackUse,
		Short: rollbackShortDescription,
		Long:  rollbackLongDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			configPath, configPathError := config.Path()
			if configPathError != nil {
				return configPathError
			}
			settings, loadError := config.Load(configPath)
			if loadError != nil {
				return loadError
			}
			if !command.Flags().Changed(outputDirectoryFlagName) && settings.OutputDirectory != "" {
				outputDirectory = settings.OutputDirectory
			}
			logger, loggerError := utils.NewApplicationLogger(strings.ToLower(settings.LogLevel))
			if loggerError != nil {
				return loggerError
			}
			defer func() { _ = logger.Sync() }()
			return writer.Rollback(outputDirectory, logger)
		},
	}

	rollbackCommand.Flags().StringVar(&outputDirectory, outputDirectoryFlagName, config.DefaultOutputDirectory, outputDirectoryFlagDescription)
	return rollbackCommand
}
