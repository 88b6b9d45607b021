/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"github.com/fanflow/fanflow/cmd"
)

func main() {
	cmd.Execute()
}
