package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/technostore/technostore/go/evm"
	storehttp "github.com/technostore/technostore/go/http"
	"github.com/technostore/technostore/go/node"
	evmsigners "github.com/technostore/technostore/go/signers/evm"
)

var (
	apiURL         string
	privateKey     string
	deadlineBlocks uint64
	eventsFrom     uint64
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		products, err := newClient().Products(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tQUANTITY\tPRICE")
		for _, p := range products {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", p.Index, p.Name, p.Quantity, p.Price)
		}
		return w.Flush()
	},
}

var addProductCmd = &cobra.Command{
	Use:   "add-product NAME QUANTITY PRICE",
	Short: "Add a product or restock one (owner only)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := newSigner()
		if err != nil {
			return err
		}
		quantity, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		price, err := evm.ParseUint256(args[2])
		if err != nil {
			return err
		}
		receipt, err := newClient().AddProduct(cmd.Context(), signer, args[0], quantity, price)
		return printReceipt(cmd.OutOrStdout(), receipt, err)
	},
}

var buyCmd = &cobra.Command{
	Use:   "buy INDEX",
	Short: "Sign a permit for the product's price and buy it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := newSigner()
		if err != nil {
			return err
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}

		client := newClient()
		info, err := client.Info(cmd.Context())
		if err != nil {
			return err
		}
		deadline := new(big.Int).SetUint64(info.Height + deadlineBlocks)

		receipt, err := client.BuyProduct(cmd.Context(), signer, index, deadline)
		return printReceipt(cmd.OutOrStdout(), receipt, err)
	},
}

var refundCmd = &cobra.Command{
	Use:   "refund INDEX",
	Short: "Return a product within the refund window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := newSigner()
		if err != nil {
			return err
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		receipt, err := newClient().RefundProduct(cmd.Context(), signer, index)
		return printReceipt(cmd.OutOrStdout(), receipt, err)
	},
}

var accountCmd = &cobra.Command{
	Use:   "account [ADDRESS]",
	Short: "Show token balance and nonces (default: the key's address)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var who common.Address
		if len(args) == 1 {
			addr, err := evm.ParseAddress(args[0])
			if err != nil {
				return err
			}
			who = addr
		} else {
			signer, err := newSigner()
			if err != nil {
				return err
			}
			who = signer.CommonAddress()
		}

		acct, err := newClient().Account(cmd.Context(), who)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), acct)
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List store events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		events, err := newClient().Events(cmd.Context(), eventsFrom)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tHEIGHT\tKIND\tPRODUCT\tBUYER")
		for _, e := range events {
			buyer := ""
			if e.Buyer != (common.Address{}) {
				buyer = e.Buyer.Hex()
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", e.Seq, e.Height, e.Kind, e.Product, buyer)
		}
		return w.Flush()
	},
}

func init() {
	for _, cmd := range []*cobra.Command{productsCmd, addProductCmd, buyCmd, refundCmd, accountCmd, eventsCmd} {
		cmd.Flags().StringVar(&apiURL, "url", "", "node API URL (env "+envURL+")")
	}
	for _, cmd := range []*cobra.Command{addProductCmd, buyCmd, refundCmd, accountCmd} {
		cmd.Flags().StringVar(&privateKey, "key", "", "hex private key (env "+envPrivateKey+")")
	}
	buyCmd.Flags().Uint64Var(&deadlineBlocks, "deadline-blocks", 10, "permit lifetime in blocks")
	eventsCmd.Flags().Uint64Var(&eventsFrom, "from", 1, "first event sequence number")
}

func newClient() *storehttp.Client {
	u := apiURL
	if u == "" {
		u = os.Getenv(envURL)
	}
	return storehttp.NewClient(&storehttp.ClientConfig{URL: u})
}

func newSigner() (*evmsigners.ClientSigner, error) {
	key := privateKey
	if key == "" {
		key = os.Getenv(envPrivateKey)
	}
	if key == "" {
		return nil, errors.New("a private key is required (--key or " + envPrivateKey + ")")
	}
	return evmsigners.NewClientSignerFromPrivateKey(key)
}

// printReceipt prints the receipt of a mined transaction, reverted or not,
// and passes err through.
func printReceipt(w io.Writer, receipt *node.Receipt, err error) error {
	if receipt != nil {
		if perr := printJSON(w, receipt); perr != nil {
			return perr
		}
	}
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
