package main

import (
	"fmt"

	"github.com/presshq/press/internal/cli"
	"github.com/presshq/press/internal/utils"
)

// main is the entry point for the press command.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger(utils.LogLevelInfo)
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	defer loggerInstance.Sync()
	if applicationExecutionError := cli.Execute(); applicationExecutionError != nil {
		loggerInstance.Fatal(utils.ApplicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	}
}
