// authflow is an end-to-end smoke test for the BetForbes auth API.
package main

import "github.com/betforbes/authflow/internal/cli"

func main() {
	cli.Execute()
}
