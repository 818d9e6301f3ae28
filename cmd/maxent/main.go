/*
Package main is the entry point for the maxent CLI.

maxent trains maximum entropy classifiers with Generalized Iterative Scaling,
stores them in a local SQLite database and serves them for prediction.

Usage:
  maxent [command]

Available Commands:
  train       Train a model from an event file
  predict     Classify contexts with a stored model
  evaluate    Measure a model against labeled events
  models      List, show and delete stored models
  features    Search the predicates of a model
  history     Show the training runs of a model
  serve       Serve stored models over JSON-RPC (stdio transport)
  config      Manage the configuration file
  version     Print version information

Examples:
  # Train a model and name it after the file
  maxent train weather.txt

  # Classify a context
  maxent predict --model weather outlook=sunny humidity=high
*/
package main

import (
	"fmt"
	"os"

	"github.com/khanglvm/maxent/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
