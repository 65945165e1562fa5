package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tbb"
	bc "tbb/blockchain"
	"tbb/node"
	"tbb/service"
	"tbb/utils"

	"github.com/pterm/pterm"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"
)

var (
	datadirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "directory holding genesis.json and block.db",
	}
	nodeFlag = cli.StringFlag{
		Name:  "node",
		Usage: "talk to a running node at this URL instead of the data directory",
	}
)

var cmds = cli.Commands{
	{
		Name:      "balances",
		Usage:     "Interact with balances (list...).",
		ArgsUsage: "[list]",
		Subcommands: cli.Commands{
			{
				Name:   "list",
				Usage:  "Lists all balances",
				Action: balancesList,
				Flags:  []cli.Flag{datadirFlag, nodeFlag},
			},
		},
	},
	{
		Name:      "tx",
		Usage:     "Interact with txs (add...).",
		ArgsUsage: "[add]",
		Subcommands: cli.Commands{
			{
				Name:  "add",
				Usage: "Adds a new TX and persists it as a block",
				Description: fmt.Sprint(`
            tbb tx add --from andrej --to babayaga --value 100
            tbb tx add --from andrej --to andrej --value 3 --data reward
				`),
				Action: txAdd,
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:  "from",
						Usage: "from what account to send tokens",
					},
					cli.StringFlag{
						Name:  "to",
						Usage: "to what account to send tokens",
					},
					cli.Uint64Flag{
						Name:  "value",
						Usage: "how many tokens to send",
					},
					cli.StringFlag{
						Name:  "data",
						Usage: "possible values: 'reward'",
					},
					datadirFlag,
					nodeFlag,
				},
			},
		},
	},
	{
		Name:   "run",
		Usage:  "Launches the HTTP node.",
		Action: runNode,
		Flags: []cli.Flag{
			datadirFlag,
			cli.StringFlag{
				Name:  "listen",
				Usage: "address to serve on, defaults to the config value",
			},
		},
	},
	{
		Name:    "block",
		Usage:   "Get latest block or a block given by an index or hash id",
		Aliases: []string{"b"},
		Action:  showBlock,
		Flags: []cli.Flag{
			cli.Int64Flag{
				Name:  "index",
				Value: -1,
				Usage: "give this block index",
			},
			cli.StringFlag{
				Name:  "hash",
				Usage: "give block hash id to show",
			},
			datadirFlag,
		},
	},
	{
		Name:   "init",
		Usage:  "Initialize the data directory with the default genesis.",
		Action: initDataDir,
		Flags:  []cli.Flag{datadirFlag},
	},
}

func balancesList(c *cli.Context) error {
	if url := c.String("node"); url != "" {
		reply, err := tbb.NewClient(url).BalancesList()
		if err != nil {
			return err
		}
		return printBalances(reply.Hash, reply.Balances)
	}

	return withState(c, func(state *service.State) error {
		return printBalances(state.LatestBlockHash(), state.Balances())
	})
}

func txAdd(c *cli.Context) error {
	req := &tbb.TxAddRequest{
		From:  bc.Account(c.String("from")),
		To:    bc.Account(c.String("to")),
		Value: c.Uint64("value"),
		Data:  c.String("data"),
	}
	if url := c.String("node"); url != "" {
		reply, err := tbb.NewClient(url).AddTx(req)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("TX successfully persisted to the ledger in block %s", reply.Hash)
		return nil
	}

	var hash bc.Hash
	err := withState(c, func(state *service.State) error {
		if err := state.AddTx(req.Tx()); err != nil {
			return err
		}
		var err error
		hash, err = state.Persist()
		return err
	})
	if err != nil {
		return err
	}
	pterm.Success.Printfln("TX successfully persisted to the ledger in block %s", hash)
	return nil
}

func runNode(c *cli.Context) error {
	dir := dataDir(c)
	listen := c.String("listen")
	if listen == "" {
		listen = config.HTTP.Listen
	}

	// Fail before listening when the data directory can't be loaded.
	err := withState(c, func(state *service.State) error {
		log.Infof("Ledger at block %s, chain %s", state.LatestBlockHash(), state.ChainID())
		return nil
	})
	if err != nil {
		return err
	}

	srv := node.NewServer(dir, stateOptions()...)
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Couldn't shut down cleanly:", err)
		}
	}()
	return srv.ListenAndServe(listen)
}

func showBlock(c *cli.Context) error {
	index := c.Int64("index")
	var hash bc.Hash
	if h := c.String("hash"); h != "" {
		var err error
		hash, err = bc.ParseHash(h)
		if err != nil {
			return xerrors.Errorf("couldn't get hash: %w", err)
		}
		if index >= 0 {
			return xerrors.New("use either --index or --hash")
		}
	}

	var record *bc.Record
	err := withState(c, func(state *service.State) error {
		var err error
		switch {
		case !hash.IsZero():
			record, err = state.GetBlockByHash(hash)
		case index >= 0:
			record, err = state.GetBlockByNumber(uint64(index))
		case state.HasGenesisBlock():
			record, err = state.LatestBlock().Record()
		default:
			err = bc.ErrBlockNotFound
		}
		return err
	})
	if err != nil {
		return xerrors.Errorf("couldn't get block: %w", err)
	}
	return printRecord(record)
}

func initDataDir(c *cli.Context) error {
	dir := dataDir(c)
	if utils.FileExists(utils.GenesisFilePath(dir)) {
		pterm.Info.Printfln("Data directory %s is already initialized", dir)
		return nil
	}
	if err := utils.InitDataDirIfNotExists(dir); err != nil {
		return err
	}
	pterm.Success.Printfln("Initialized %s", dir)
	return nil
}
