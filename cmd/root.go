/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package cmd holds the fanflow command line. Each subcommand pairs a cobra
// command with a viper config, so every flag can also come from the
// environment (FANFLOW_*) or a config file.
package cmd

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fanflow/fanflow/x"
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "fanflow",
	Short: "Fanflow: GraphQL API over an embedded store",
	Long: `
Fanflow serves a GraphQL API for users, posts, profiles and membership
tiers, with subscription relationships between users, backed by an embedded
badger store. Relation lookups are batched per request to avoid N+1 store
round trips.
`,
	PersistentPreRunE: cobra.NoArgs,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main() and only needs to happen
// once.
func Execute() {
	goflag.Parse()
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var rootConf = viper.New()

func init() {
	RootCmd.PersistentFlags().String("config", "",
		"Configuration file. Takes precedence over default values, but is "+
			"overridden by environment variables and flags.")
	x.Check(rootConf.BindPFlags(RootCmd.PersistentFlags()))

	// adopt glog's flags (-v, -logtostderr, ...) into the pflag set
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)

	subcommands := []*x.SubCommand{&Serve}
	for _, sc := range subcommands {
		RootCmd.AddCommand(sc.Cmd)
		sc.Conf = viper.New()
		x.Check(sc.Conf.BindPFlags(sc.Cmd.Flags()))
		sc.Conf.AutomaticEnv()
		sc.Conf.SetEnvPrefix(sc.EnvPrefix)
	}

	cobra.OnInitialize(func() {
		cfg := rootConf.GetString("config")
		if cfg == "" {
			return
		}
		for _, sc := range subcommands {
			sc.Conf.SetConfigFile(cfg)
			x.Checkf(sc.Conf.ReadInConfig(), "reading config %q", cfg)
		}
	})
}
