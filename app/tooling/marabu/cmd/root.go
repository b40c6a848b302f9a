// Package cmd contains the light client commands.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/marabu/node/foundation/blockchain/p2p"
	"github.com/marabu/node/foundation/blockchain/protocol"
	"github.com/spf13/cobra"
)

var (
	host    string
	target  string
	timeout time.Duration
)

const agent = "Marabu-Go Light Client 0.9"

func init() {
	rootCmd.PersistentFlags().StringVarP(&host, "host", "H", "localhost:18018", "Address of the node.")
	rootCmd.PersistentFlags().StringVarP(&target, "target", "T", "", "Proof of work target of the network.")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "w", 5*time.Second, "How long to wait for an answer.")
}

var rootCmd = &cobra.Command{
	Use:   "marabu",
	Short: "Light client for a Marabu node",
}

// Execute runs the command named on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect dials the node and performs the handshake.
func connect() (*p2p.Client, error) {
	c, err := p2p.Dial(host, target, timeout)
	if err != nil {
		return nil, err
	}

	if err := c.Handshake(agent); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// ask sends the request and waits for a message of the type. An error
// message from the node ends the wait.
func ask(c *p2p.Client, req protocol.Message, typ string) (protocol.Message, error) {
	if err := c.Send(req); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no %s message within %s", typ, timeout)
		}

		msg, err := c.Receive(remaining)
		if err != nil {
			return nil, err
		}

		switch m := msg.(type) {
		case protocol.Error:
			return nil, fmt.Errorf("%s: %s", m.Name, m.Description)
		default:
			if msg.Type() == typ {
				return msg, nil
			}
		}
	}
}
