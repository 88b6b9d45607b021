/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SubCommand ties a cobra command to its viper configuration, so flag values
// can also arrive from config files and FANFLOW_* environment variables.
type SubCommand struct {
	Cmd  *cobra.Command
	Conf *viper.Viper

	EnvPrefix string
}

func (s SubCommand) GetString(name string) string {
	return s.Conf.GetString(name)
}

func (s SubCommand) GetBool(name string) bool {
	return s.Conf.GetBool(name)
}
