package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar"
	"github.com/unixpickle/trainhmm"
	"github.com/unixpickle/trainhmm/config"
	"github.com/unixpickle/trainhmm/store"
)

func main() {
	var configPath string
	var dbPath string
	var showBar bool
	var verbosity int
	flag.StringVar(&configPath, "config", "", "scenario YAML file")
	flag.StringVar(&dbPath, "db", "", "badger directory to store the run in")
	flag.BoolVar(&showBar, "progress", true, "show a progress bar while sampling")
	flag.IntVar(&verbosity, "v", 1, "log verbosity (2 lists visited assignments, 3 traces "+
		"every iteration)")

	fset := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fset)
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})

	flag.Parse()

	err := configureLogging(fset, verbosity)
	if err == nil {
		err = run(configPath, dbPath, showBar)
	}
	if err != nil {
		klog.Errorf("%v", err)
	}
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

// configureLogging forwards the command-line settings to
// the klog flags registered on fset.
func configureLogging(fset *flag.FlagSet, verbosity int) error {
	if err := fset.Set("logtostderr", "true"); err != nil {
		return errors.Wrap(err, "configure logging")
	}
	if err := fset.Set("v", strconv.Itoa(verbosity)); err != nil {
		return errors.Wrap(err, "configure logging")
	}
	return nil
}

func run(configPath, dbPath string, showBar bool) error {
	scenario := config.Default()
	if configPath != "" {
		var err error
		scenario, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}
	if dbPath != "" {
		scenario.Database = dbPath
	}

	gen := rand.New(rand.NewSource(scenario.Seed))

	topology, err := trainhmm.BuildTopology(gen, scenario.Vertices)
	if err != nil {
		return errors.Wrap(err, "build topology")
	}
	truth, err := scenario.TrueSwitches(gen)
	if err != nil {
		return err
	}
	path, observed, err := trainhmm.Simulate(gen, topology, truth, scenario.Steps,
		scenario.Noise)
	if err != nil {
		return errors.Wrap(err, "simulate")
	}
	klog.Infof("simulated %d steps on %d vertices with switches %v", len(path),
		topology.NumVertices(), truth)

	model, err := trainhmm.NewModel(topology, observed, scenario.Noise)
	if err != nil {
		return err
	}
	trueLikelihood, err := model.Likelihood(truth)
	if err != nil {
		return err
	}
	klog.Infof("likelihood of true switches: %g", trueLikelihood)

	samplerConfig, err := scenario.SamplerConfig(gen)
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	samplerConfig.Metrics = trainhmm.NewSamplerMetrics(registry)
	if showBar {
		bar := progressbar.New(samplerConfig.Iterations())
		samplerConfig.OnSample = func(trainhmm.Sample) {
			bar.Add(1)
		}
	}

	sampler, err := trainhmm.NewSampler(model, samplerConfig)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if scenario.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scenario.Timeout)
		defer cancel()
	}
	chain, err := sampler.Run(ctx)
	if err != nil {
		if chain == nil || chain.Len() == 0 {
			return errors.Wrap(err, "sample")
		}
		klog.Warningf("using partial chain of %d samples: %v", chain.Len(), err)
	}

	report(model, path, truth, chain)
	logMetrics(registry)

	if scenario.Database != "" {
		db, err := store.Open(scenario.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := db.SaveRun(&store.Run{Model: model, Truth: truth, Chain: chain})
		if err != nil {
			return err
		}
		klog.Infof("stored run %s in %s", id, scenario.Database)
	}
	return nil
}

func report(model *trainhmm.Model, path trainhmm.TruePath, truth trainhmm.SwitchAssignment,
	chain *trainhmm.Chain) {
	klog.Infof("recorded %d samples, acceptance rate %.3f, %d degenerate proposals",
		chain.Len(), chain.AcceptanceRate(), chain.Degenerate)

	if best, ok := chain.Best(); ok {
		klog.Infof("best sample: %v (likelihood %g, %d switches wrong)", best.Sigma,
			best.Likelihood, best.Sigma.Hamming(truth))
		if table, err := model.Viterbi(best.Sigma); err == nil {
			decoded := table.MostLikely()
			var correct int
			for i, state := range path.States() {
				if i < len(decoded) && decoded[i] == state {
					correct++
				}
			}
			klog.Infof("viterbi path under best sample matches %d/%d true states", correct,
				len(path))
		}
	}

	if marginal := chain.MarginalAssignment(); marginal != nil {
		klog.Infof("marginal assignment: %v (%d switches wrong)", marginal,
			marginal.Hamming(truth))
	}

	histogram := chain.Histogram()
	klog.V(1).Infof("%d distinct assignments visited", len(histogram))
	for _, entry := range histogram {
		klog.V(2).Infof("  %v: %d", entry.Sigma, entry.Count)
	}

	posterior, err := trainhmm.StatePosterior(model, chain.Sigmas())
	if err != nil {
		klog.Warningf("state posterior: %v", err)
		return
	}
	final := path[len(path)-1]
	trueState := trainhmm.EncodeState(final.Vertex, final.Departure)
	klog.Infof("posterior of true final state (vertex %d, %v): %.3f", final.Vertex,
		final.Departure, posterior[trueState])
}

func logMetrics(registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		klog.Warningf("gather metrics: %v", err)
		return
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				klog.V(1).Infof("%s %g", family.GetName(), c.GetValue())
			} else if g := metric.GetGauge(); g != nil {
				klog.V(1).Infof("%s %g", family.GetName(), g.GetValue())
			}
		}
	}
}
