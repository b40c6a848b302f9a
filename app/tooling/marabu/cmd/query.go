package cmd

import (
	"fmt"
	"log"

	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/protocol"
	"github.com/spf13/cobra"
)

var tipCmd = &cobra.Command{
	Use:   "tip",
	Short: "Show the chain tip of the node",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := connect()
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close()

		msg, err := ask(c, protocol.GetChainTip{}, protocol.TypeChainTip)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(msg.(protocol.ChainTip).BlockID)
	},
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List the peers known to the node",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := connect()
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close()

		msg, err := ask(c, protocol.GetPeers{}, protocol.TypePeers)
		if err != nil {
			log.Fatal(err)
		}
		for _, p := range msg.(protocol.Peers).Peers {
			fmt.Println(p)
		}
	},
}

var mempoolCmd = &cobra.Command{
	Use:   "mempool",
	Short: "List the transactions in the mempool of the node",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := connect()
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close()

		msg, err := ask(c, protocol.GetMempool{}, protocol.TypeMempool)
		if err != nil {
			log.Fatal(err)
		}
		for _, id := range msg.(protocol.Mempool).TxIDs {
			fmt.Println(id)
		}
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch an object from the node",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := connect()
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close()

		msg, err := ask(c, protocol.GetObject{ObjectID: args[0]}, protocol.TypeObject)
		if err != nil {
			log.Fatal(err)
		}

		data, err := database.Encode(msg.(protocol.Object).Object)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(data))
	},
}

func init() {
	rootCmd.AddCommand(tipCmd)
	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(mempoolCmd)
	rootCmd.AddCommand(getCmd)
}
