package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Send an object document to the node",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(err)
		}

		obj, err := database.ParseObject(data)
		if err != nil {
			log.Fatal(err)
		}

		c, err := connect()
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close()

		if err := c.Submit(obj, timeout); err != nil {
			log.Fatalf("%s %s rejected: %s", obj.Kind(), obj.ID(), err)
		}
		fmt.Println(obj.ID())
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
}
