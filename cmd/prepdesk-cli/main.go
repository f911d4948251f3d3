package main

import "github.com/nstlabs/prepdesk/cmd/prepdesk-cli/cmd"

func main() {
	cmd.Execute()
}
