// SPDX-License-Identifier: MPL-2.0

package main

import "dval/cmd/dval"

func main() {
	cmd.Execute()
}
