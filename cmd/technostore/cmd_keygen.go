package main

import (
	"fmt"

	"github.com/spf13/cobra"

	evmsigners "github.com/technostore/technostore/go/signers/evm"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a secp256k1 key and print its address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		signer, err := evmsigners.GenerateClientSigner()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "address:     %s\nprivate key: %s\n", signer.Address(), signer.PrivateKeyHex())
		return nil
	},
}
