// Copyright 2021 The tinyChain Authors
// This file is part of the tinyChain.
//
// The tinyChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tinyChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tinyChain. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	`encoding/hex`
	`fmt`
	`log`

	`github.com/jessevdk/go-flags`
	`github.com/pkg/errors`

	`tinyChain/core`
	`tinyChain/network`
	`tinyChain/utils`
)

// mineTrue is the --mine value that makes `send` mine the block locally.
const mineTrue = 1

var errInvalidAddress = errors.New("Invalid address")

type createWalletCommand struct{}

func (cmd *createWalletCommand) Execute(args []string) error {
	wallets, err := core.NewWallets()
	if err != nil {
		return err
	}
	addr, err := wallets.CreateWallet()
	if err != nil {
		return err
	}
	fmt.Printf("Your new address: %s\n", addr)
	return nil
}

type createBlockchainCommand struct {
	Address string `long:"address" required:"true" description:"The address receiving the genesis coinbase reward"`
}

func (cmd *createBlockchainCommand) Execute(args []string) error {
	if !core.ValidateAddr(cmd.Address) {
		return errInvalidAddress
	}

	chain, err := core.CreateBlockChain(cmd.Address)
	if err != nil {
		return err
	}
	defer closeDb(chain)

	utxoSet := core.UTXOSet{BlockChain: chain}
	utxoSet.Reindex()
	fmt.Println("Done!")
	return nil
}

type getBalanceCommand struct {
	Address string `long:"address" required:"true" description:"The address to query"`
}

func (cmd *getBalanceCommand) Execute(args []string) error {
	if !core.ValidateAddr(cmd.Address) {
		return errInvalidAddress
	}

	chain, err := core.NewBlockChain()
	if err != nil {
		return err
	}
	defer closeDb(chain)

	payload := utils.Base58Decode(cmd.Address)
	pubKeyHash := payload[1 : len(payload)-4]

	utxoSet := core.UTXOSet{BlockChain: chain}
	balance := int32(0)
	for _, txOutput := range utxoSet.FindUTXO(pubKeyHash) {
		balance += txOutput.Value
	}
	fmt.Printf("Balance of %s: %d\n", cmd.Address, balance)
	return nil
}

type listAddressesCommand struct{}

func (cmd *listAddressesCommand) Execute(args []string) error {
	wallets, err := core.NewWallets()
	if err != nil {
		return err
	}
	for _, addr := range wallets.GetAddrs() {
		fmt.Println(addr)
	}
	return nil
}

type sendCommand struct {
	From   string `long:"from" required:"true" description:"Source wallet address"`
	To     string `long:"to" required:"true" description:"Destination wallet address"`
	Amount int32  `long:"amount" required:"true" description:"Amount of coins to send"`
	Mine   int    `long:"mine" description:"Mine immediately on this node (1) instead of pushing to the seed"`
}

func (cmd *sendCommand) Execute(args []string) error {
	if !core.ValidateAddr(cmd.From) {
		return errors.Wrap(errInvalidAddress, "from")
	}
	if !core.ValidateAddr(cmd.To) {
		return errors.Wrap(errInvalidAddress, "to")
	}

	chain, err := core.NewBlockChain()
	if err != nil {
		return err
	}
	defer closeDb(chain)

	utxoSet := core.UTXOSet{BlockChain: chain}
	tx, err := core.NewUTXOTransaction(cmd.From, cmd.To, cmd.Amount, &utxoSet)
	if err != nil {
		return err
	}

	if cmd.Mine == mineTrue {
		// the sender also collects the coinbase reward of the block it mines
		coinbaseTx := core.NewCoinbaseTx(cmd.From)
		newBlock := chain.MineBlock([]*core.Transaction{tx, coinbaseTx})
		if err := utxoSet.Update(newBlock); err != nil {
			return err
		}
	} else {
		config := core.NewConfig()
		if err := network.SendTx(network.CentralNode, config.GetNodeAddr(), tx); err != nil {
			return err
		}
	}

	fmt.Println("Send success!")
	return nil
}

type printChainCommand struct{}

func (cmd *printChainCommand) Execute(args []string) error {
	chain, err := core.NewBlockChain()
	if err != nil {
		return err
	}
	defer closeDb(chain)

	iter := chain.Iterator()
	for {
		block := iter.Next()
		if block == nil {
			break
		}

		fmt.Printf("Prev block hash: %s\n", block.PrevBlockHash)
		fmt.Printf("Cur block hash: %s\n", block.Hash)
		fmt.Printf("Cur block timestamp: %d\n", block.TimeStamp)

		for _, tx := range block.Transactions {
			fmt.Printf("- Transaction id: %s\n", hex.EncodeToString(tx.Id))

			if !tx.IsCoinbase() {
				for _, txInput := range tx.Vin {
					fromAddr := core.ConvertAddr(core.HashPubKey(txInput.PubKey))
					fmt.Printf("-- Input txid = %s, vout = %d, from = %s\n",
						hex.EncodeToString(txInput.TxId), txInput.Vout, fromAddr)
				}
			}
			for _, txOutput := range tx.Vout {
				toAddr := core.ConvertAddr(txOutput.PubKeyHash)
				fmt.Printf("-- Output value = %d, to = %s\n", txOutput.Value, toAddr)
			}
		}
		fmt.Println()
	}
	return nil
}

type reindexUtxoCommand struct{}

func (cmd *reindexUtxoCommand) Execute(args []string) error {
	chain, err := core.NewBlockChain()
	if err != nil {
		return err
	}
	defer closeDb(chain)

	utxoSet := core.UTXOSet{BlockChain: chain}
	utxoSet.Reindex()
	fmt.Printf("Done! There are %d transactions in the UTXO set.\n", utxoSet.CountTxs())
	return nil
}

type startNodeCommand struct {
	Miner string `long:"miner" description:"Enable mining mode and send rewards to this address"`
}

func (cmd *startNodeCommand) Execute(args []string) error {
	config := core.NewConfig()
	if cmd.Miner != "" {
		if !core.ValidateAddr(cmd.Miner) {
			return errors.Wrap(errInvalidAddress, "miner")
		}
		fmt.Printf("Mining is on. Address to receive rewards: %s\n", cmd.Miner)
		config.SetMiningAddr(cmd.Miner)
	}

	chain, err := core.NewBlockChain()
	if err != nil {
		return err
	}

	return network.NewServer(chain, config).Run()
}

func closeDb(chain *core.BlockChain) {
	if err := chain.Db.Close(); err != nil {
		log.Println(err)
	}
}

// newCliParser assembles the subcommand front-end.
func newCliParser() *flags.Parser {
	parser := flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)
	parser.LongDescription = "tinyChain: an educational UTXO blockchain node"

	mustAddCommand(parser, "create-wallet", "Create a new wallet", &createWalletCommand{})
	mustAddCommand(parser, "create-blockchain", "Create a new blockchain paying the genesis reward to --address", &createBlockchainCommand{})
	mustAddCommand(parser, "get-balance", "Get the balance of a wallet", &getBalanceCommand{})
	mustAddCommand(parser, "list-addresses", "List all addresses in the wallet file", &listAddressesCommand{})
	mustAddCommand(parser, "send", "Send coins between wallets", &sendCommand{})
	mustAddCommand(parser, "print-chain", "Print every block from the tip to genesis", &printChainCommand{})
	mustAddCommand(parser, "reindex-utxo", "Rebuild the UTXO index from the chain", &reindexUtxoCommand{})
	mustAddCommand(parser, "start-node", "Start a node at NODE_ADDRESS", &startNodeCommand{})

	return parser
}

func mustAddCommand(parser *flags.Parser, name, description string, command interface{}) {
	if _, err := parser.AddCommand(name, description, description, command); err != nil {
		log.Panic(err)
	}
}
