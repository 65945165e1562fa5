package main

import (
	"os"
	"sort"
	"strconv"

	bc "tbb/blockchain"
	"tbb/service"
	"tbb/utils"

	"github.com/pterm/pterm"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"
)

// config is loaded by the Before hook of the app.
var config = utils.DefaultConfig()

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		if kind := bc.Kind(err); kind != bc.KindInternal {
			err = xerrors.Errorf("%s: %w", kind, err)
		}
	}
	log.ErrFatal(err)
}

func newApp() *cli.App {
	cliApp := cli.NewApp()
	cliApp.Name = utils.DefaultName
	cliApp.Usage = "The Blockchain Bar ledger."
	cliApp.Version = "0.1"
	cliApp.Commands = cmds
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
		cli.StringFlag{
			Name:  "config, c",
			Value: utils.DefaultConfigPath(),
			Usage: "configuration file",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		var err error
		config, err = utils.LoadConfig(c.String("config"))
		if err != nil {
			return err
		}
		if c.IsSet("debug") {
			config.Log.Debug = c.Int("debug")
		}
		log.SetDebugVisible(config.Log.Debug)
		return nil
	}
	return cliApp
}

// dataDir prefers the --datadir flag of the command over the config.
func dataDir(c *cli.Context) string {
	if dir := c.String("datadir"); dir != "" {
		return dir
	}
	return config.DataDir
}

func stateOptions() []service.Option {
	if len(config.Clock.NTPServers) == 0 {
		return nil
	}
	clock := service.NewNTPClock(config.Clock.NTPServers, config.Clock.NTPTimeout.Duration)
	return []service.Option{service.WithClock(clock)}
}

func openState(c *cli.Context) (*service.State, error) {
	dir := dataDir(c)
	log.Lvl2("Loading state from", dir)
	return service.NewStateFromDisk(dir, stateOptions()...)
}

// withState runs f on the state of the data directory, then closes it. A
// failed close is reported like a failed f.
func withState(c *cli.Context, f func(*service.State) error) error {
	state, err := openState(c)
	if err != nil {
		return err
	}
	err = f(state)
	if cerr := state.Close(); err == nil {
		err = cerr
	}
	return err
}

func printBalances(hash bc.Hash, balances bc.Balances) error {
	pterm.Info.Printfln("Accounts balances at %s:", hash)
	accounts := make([]string, 0, len(balances))
	for account := range balances {
		accounts = append(accounts, string(account))
	}
	sort.Strings(accounts)

	data := pterm.TableData{{"Account", "Balance"}}
	for _, account := range accounts {
		data = append(data, []string{account, strconv.FormatUint(balances[bc.Account(account)], 10)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printRecord(record *bc.Record) error {
	header := record.Value.Header
	pterm.Info.Printfln("Block %d / %s", header.Number, record.Key)
	pterm.Printfln("parent: %s", header.Parent)
	pterm.Printfln("time:   %d", header.Time)

	data := pterm.TableData{{"From", "To", "Value", "Data"}}
	for _, tx := range record.Value.Payload {
		data = append(data, []string{string(tx.From), string(tx.To), strconv.FormatUint(tx.Value, 10), tx.Data})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
