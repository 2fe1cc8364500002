// Command goclaw is the entry point for the daemon and its hidden
// session-host subprocess.
package main

import "github.com/nextlevelbuilder/goclaw/cmd"

func main() {
	cmd.Execute()
}
