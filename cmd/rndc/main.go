// Command rndc is a CLI client for the BIND remote name daemon control
// protocol: it connects to a control channel, authenticates with a
// shared TSIG key, and runs one command.
package main

import "github.com/zpapi-labs/rndc/cmd/rndc/commands"

func main() {
	commands.Execute()
}
