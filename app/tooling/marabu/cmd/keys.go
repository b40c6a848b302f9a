package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/genesis"
	"github.com/marabu/node/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var (
	keyPath string
	height  uint64
	value   uint64
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new ed25519 key pair",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := signature.GenerateKey()
		if err != nil {
			log.Fatal(err)
		}

		if err := os.MkdirAll(filepath.Dir(keyPath), 0755); err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(keyPath, []byte(signature.SeedHex(privateKey)+"\n"), 0600); err != nil {
			log.Fatal(err)
		}

		fmt.Println(signature.PublicKeyHex(privateKey))
	},
}

var coinbaseCmd = &cobra.Command{
	Use:   "coinbase",
	Short: "Print a coinbase transaction paying the key",
	Run: func(cmd *cobra.Command, args []string) {
		content, err := os.ReadFile(keyPath)
		if err != nil {
			log.Fatal(err)
		}

		privateKey, err := signature.PrivateKeyFromHex(strings.TrimSpace(string(content)))
		if err != nil {
			log.Fatal(err)
		}

		cb := database.Coinbase{
			Type:    database.TypeTransaction,
			Height:  height,
			Outputs: []database.Output{{PubKey: signature.PublicKeyHex(privateKey), Value: value}},
		}

		data, err := database.Encode(cb)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(data))
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(coinbaseCmd)

	keygenCmd.Flags().StringVarP(&keyPath, "key", "k", "zblock/keys/private.key", "Path to the private key.")
	coinbaseCmd.Flags().StringVarP(&keyPath, "key", "k", "zblock/keys/private.key", "Path to the private key.")
	coinbaseCmd.Flags().Uint64Var(&height, "height", 1, "Height of the block holding the coinbase.")
	coinbaseCmd.Flags().Uint64Var(&value, "value", genesis.BlockReward, "Value paid by the coinbase.")
}
