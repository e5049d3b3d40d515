/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/blnkfinance/esusu"
	"github.com/blnkfinance/esusu/config"
	"github.com/blnkfinance/esusu/database"
	"github.com/blnkfinance/esusu/gateway"
	"github.com/blnkfinance/esusu/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Esusu represents the CLI application, encapsulating the root Cobra command.
type Esusu struct {
	cmd *cobra.Command
}

// esusuInstance holds the runtime service instance and its configuration,
// shared across every subcommand through the persistent pre-run hook.
type esusuInstance struct {
	esusu *esusu.Esusu
	cnf   *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the service instance before
// running any command.
func preRun(app *esusuInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("esusu.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newEsusu, err := setupEsusu(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.esusu = newEsusu
		app.cnf = cnf

		return nil
	}
}

// setupEsusu wires the data source and the ledger gateway into a new service
// instance from the provided configuration.
func setupEsusu(cfg *config.Configuration) (*esusu.Esusu, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return &esusu.Esusu{}, fmt.Errorf("error getting datasource: %v", err)
	}

	gw, err := gateway.NewRPCGateway(gateway.Config{
		Endpoint:   cfg.Ledger.Endpoint,
		Timeout:    time.Duration(cfg.Ledger.TimeoutSec) * time.Second,
		PoolSecret: cfg.Ledger.PoolSecret,
	})
	if err != nil {
		return &esusu.Esusu{}, fmt.Errorf("error creating ledger gateway: %v", err)
	}
	if err := gw.Connect(context.Background()); err != nil {
		return &esusu.Esusu{}, fmt.Errorf("error reaching ledger node: %v", err)
	}

	newEsusu, err := esusu.NewEsusu(db, gw)
	if err != nil {
		return &esusu.Esusu{}, fmt.Errorf("error creating esusu: %v", err)
	}
	return newEsusu, nil
}

// NewCLI creates the command-line interface for the esusu application.
func NewCLI() *Esusu {
	var configFile string
	b := &esusuInstance{}

	var rootCmd = &cobra.Command{
		Use:   "esusu",
		Short: "Rotating savings circles on a shared ledger",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./esusu.json", "Configuration file for esusu")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))

	return &Esusu{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Esusu) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
