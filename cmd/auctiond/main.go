package main

import (
	"net"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	golog "github.com/textileio/go-log/v2"
	"github.com/wattmarket/auction-core/chain"
	"github.com/wattmarket/auction-core/cmd/auctiond/auctioneer"
	"github.com/wattmarket/auction-core/cmd/auctiond/service"
	"github.com/wattmarket/auction-core/cmd/auctiond/store"
	"github.com/wattmarket/auction-core/common"
	"github.com/wattmarket/auction-core/finalizer"
	"github.com/wattmarket/auction-core/msgbroker/kafkapubsub"
)

var (
	daemonName        = "auctiond"
	defaultConfigPath = filepath.Join(os.Getenv("HOME"), "."+daemonName)
	log               = golog.Logger(daemonName)
	v                 = viper.New()
)

func init() {
	flags := []common.Flag{
		{Name: "rpc-addr", DefValue: ":5000", Description: "JSON-RPC listen address"},
		{Name: "repo-path", DefValue: defaultConfigPath, Description: "Repo path backing the auction store"},
		{Name: "ledger-rpc-url", DefValue: "http://127.0.0.1:7000/rpc/v0", Description: "Ledger node JSON-RPC URL"},
		{Name: "kafka-brokers", DefValue: "127.0.0.1:9092", Description: "Kafka broker addresses", Repeatable: true},
		{Name: "topic-prefix", DefValue: "wattmarket", Description: "Message broker topic prefix"},
		{Name: "height-poll-interval", DefValue: time.Second * 10, Description: "Chain height poll interval"},
		{Name: "metrics-addr", DefValue: ":9090", Description: "Prometheus listen address"},
		{Name: "log-debug", DefValue: false, Description: "Enable debug level logging"},
		{Name: "log-json", DefValue: false, Description: "Enable structured logging"},
	}

	common.ConfigureCLI(v, "AUCTIOND", flags, rootCmd)
}

var rootCmd = &cobra.Command{
	Use:   daemonName,
	Short: "auctiond runs the electricity marketplace matching core",
	Long:  "auctiond runs the electricity marketplace matching core",
	PersistentPreRun: func(c *cobra.Command, args []string) {
		common.ExpandEnvVars(v, v.AllSettings())
		err := common.ConfigureLogging(v, []string{
			daemonName,
			"auctioneer",
			"auctiond/service",
			store.LogName,
			"kafkapubsub",
		})
		common.CheckErrf("setting log levels: %v", err)
	},
	Run: func(c *cobra.Command, args []string) {
		settings, err := common.MarshalConfig(v)
		common.CheckErrf("marshaling config: %v", err)
		log.Infof("loaded config: %s", string(settings))

		fin := finalizer.NewFinalizer()

		err = common.SetupInstrumentation(v.GetString("metrics-addr"))
		common.CheckErrf("booting instrumentation: %v", err)

		listener, err := net.Listen("tcp", v.GetString("rpc-addr"))
		common.CheckErrf("creating listener: %v", err)

		mb, err := kafkapubsub.New(common.ParseStringSlice(v, "kafka-brokers"), v.GetString("topic-prefix"))
		common.CheckErrf("creating msg broker: %v", err)
		fin.Add(mb)

		ch, err := chain.New(v.GetString("ledger-rpc-url"))
		common.CheckErrf("creating chain client: %v", err)
		fin.Add(ch)

		config := service.Config{
			RepoPath: v.GetString("repo-path"),
			Listener: listener,
			Auction: auctioneer.Config{
				HeightPollInterval: v.GetDuration("height-poll-interval"),
			},
		}
		serv, err := service.New(config, mb, ch, nil)
		common.CheckErrf("starting service: %v", err)
		fin.Add(serv)

		serv.Start()

		common.HandleInterrupt(func() {
			common.CheckErr(fin.Cleanupf("closing service: %v", nil))
		})
	},
}

func main() {
	common.CheckErr(rootCmd.Execute())
}
