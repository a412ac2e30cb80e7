// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vnetsim/vnetsim-core/config"
	"github.com/vnetsim/vnetsim-core/controller"
	"github.com/vnetsim/vnetsim-core/demohost"
	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/host"
	"github.com/vnetsim/vnetsim-core/policy"
	"github.com/vnetsim/vnetsim-core/rng"
	"github.com/vnetsim/vnetsim-core/round"
	"github.com/vnetsim/vnetsim-core/topology"
	"github.com/vnetsim/vnetsim-core/vtime"
	"github.com/vnetsim/vnetsim-core/workload"
)

var (
	topologyPath   string
	nWorkers       int
	nCPUs          int
	policyTag      string
	seed           int64
	endTimeNS      uint64
	maxConcurrency int
	arrivalHost    string
	arrivalRate    float64
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "vnetsim-core",
	Short: "Parallel discrete-event network host simulator",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation engine",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		topoCfg, err := config.LoadTopologyConfig(topologyPath)
		if err != nil {
			logrus.Fatalf("Loading topology: %v", err)
		}

		engineCfg := config.DefaultEngineConfig()
		engineCfg.NWorkers = nWorkers
		engineCfg.NCPUs = nCPUs
		engineCfg.PolicyTag = policyTag
		engineCfg.Seed = seed
		engineCfg.EndTimeNS = endTimeNS
		engineCfg.MaxConcurrency = maxConcurrency
		if err := engineCfg.Validate(); err != nil {
			logrus.Fatalf("Invalid engine configuration: %v", err)
		}

		logrus.Infof("Starting simulation with %d hosts, %d workers, policy=%s, end_time=%dns",
			len(topoCfg.Hosts), engineCfg.NWorkers, engineCfg.PolicyTag, engineCfg.EndTimeNS)

		registry := host.NewRegistry()
		for _, name := range topoCfg.Hosts {
			if err := registry.Add(host.New(name, demohost.New(name, nil))); err != nil {
				logrus.Fatalf("Building topology: %v", err)
			}
		}

		topo := topology.New()
		for _, e := range topoCfg.Edges {
			from, to := event.DeriveHostID(e.From), event.DeriveHostID(e.To)
			if err := topo.AddEdge(from, to, vtime.SimulationTime(e.LatencyNS)); err != nil {
				logrus.Fatalf("Building topology: %v", err)
			}
		}

		barrier := new(vtime.SimulationTime)
		polCfg := policy.Config{
			NWorkers:       engineCfg.NWorkers,
			MaxConcurrency: engineCfg.MaxConcurrency,
			EndTime:        engineCfg.EndTime(),
			RoundBarrier:   barrier,
			Registry:       registry,
		}
		tag := policy.Tag(engineCfg.PolicyTag)
		pol, err := policy.New(tag, polCfg)
		if err != nil {
			logrus.Fatalf("Building policy: %v", err)
		}

		streams := rng.New(engineCfg.Seed)
		if arrivalHost != "" {
			gen := workload.New(pol, event.DeriveHostID(arrivalHost), arrivalRate, engineCfg.EndTime(), streams.ForSubsystem(rng.SubsystemWorkload))
			n := gen.Generate(func(i int) any { return fmt.Sprintf("arrival-%d", i) })
			logrus.Infof("Generated %d external arrivals for %s", n, arrivalHost)
		}

		sched := round.New(registry, pol, round.Options{
			NWorkers:   engineCfg.NWorkers,
			NCPUs:      engineCfg.NCPUs,
			Steal:      tag.Steal(),
			ShuffleRNG: streams.ForSubsystem(rng.SubsystemShuffle),
			Barrier:    barrier,
			EndTime:    engineCfg.EndTime(),
		})
		ctrl := controller.New(sched, topo, engineCfg.EndTime())
		if err := ctrl.Run(); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		for _, h := range registry.All() {
			stats := h.Stats()
			logrus.Infof("[%s] processed=%d faults=%d exited=%v", h.Name, stats.Processed, stats.FaultCount, stats.Exited)
		}
		polStats := pol.Stats()
		metrics := ctrl.Metrics()
		logrus.Infof("Simulation complete: %d rounds in %s; events pushed=%d clamped=%d discarded=%d",
			metrics.Rounds, metrics.Wall, polStats.Pushed, polStats.Clamped, polStats.Discarded)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&topologyPath, "topology", "", "Path to the topology YAML file")
	runCmd.MarkFlagRequired("topology")
	runCmd.Flags().IntVar(&nWorkers, "n-workers", 0, "Number of worker threads (0: caller is the sole worker)")
	runCmd.Flags().IntVar(&nCPUs, "n-cpus", 1, "Number of CPUs available for worker pinning")
	runCmd.Flags().StringVar(&policyTag, "policy", "host", "Scheduling policy: serial, host, steal, thread-single, thread-per-thread, thread-per-host")
	runCmd.Flags().Int64Var(&seed, "seed", 1, "Master seed for deterministic randomness")
	runCmd.Flags().Uint64Var(&endTimeNS, "end-time-ns", 1_000_000, "Simulation end time in nanoseconds")
	runCmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "Maximum concurrent workers allowed by the steal policy (0: unbounded)")
	runCmd.Flags().StringVar(&arrivalHost, "arrival-host", "", "If set, generate external Poisson arrivals for this host")
	runCmd.Flags().Float64Var(&arrivalRate, "arrival-rate", 0.0001, "External arrival rate in events per nanosecond")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
}
