// This program is a light client for a Marabu node. It speaks the gossip
// protocol over TCP like any other peer.
package main

import "github.com/marabu/node/app/tooling/marabu/cmd"

func main() {
	cmd.Execute()
}
