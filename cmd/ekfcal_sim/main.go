// Command ekfcal_sim drives the estimator against a synthetic measurement
// stream generated from an analytic ground-truth trajectory (spec.md §6),
// writing per-subsystem CSV logs to <out_dir>.
//
// Grounded on cmd/fuse/main.go's flag-based CLI shape (flag.Parse, explicit
// os.Exit codes) and cmd/udp_server/main.go's config-then-serve structure.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"ekfcal-go/config"
	"ekfcal-go/datalog"
	"ekfcal-go/logging"
	"ekfcal-go/orchestrator"
	"ekfcal-go/sim"
	"ekfcal-go/statusweb"
	"ekfcal-go/tsqueue"
)

func main() {
	statusPort := flag.Int("status-port", 0, "serve a live statusweb dashboard feed on this port (0 disables it)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: ekfcal_sim [--status-port N] <config.yaml> <out_dir>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	configPath := flag.Arg(0)
	outDir := flag.Arg(1)

	if err := run(configPath, outDir, *statusPort); err != nil {
		fmt.Fprintf(os.Stderr, "ekfcal_sim: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, outDir string, statusPort int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.SimParams == nil {
		return fmt.Errorf("sim_params required to drive the synthetic simulator")
	}

	log := logging.New(os.Stderr, logging.Level(cfg.DebugLogLevel))

	sys, err := orchestrator.Build(cfg, log)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	logger, err := datalog.New(outDir, cfg.ImuList, cfg.CameraList)
	if err != nil {
		return fmt.Errorf("open datalog: %w", err)
	}
	defer logger.Close()

	if cfg.DataLoggingOn {
		sys.Orchestrator.AttachLogger(logger, cfg.BodyDataRate)
	}

	if statusPort > 0 {
		statusSrv := statusweb.NewServer()
		sys.Orchestrator.AttachStatusHub(statusSrv.Hub)
		go func() {
			if err := statusSrv.Start(statusPort); err != nil {
				log.Warnf("status hub stopped: %v", err)
			}
		}()
		defer statusSrv.Stop()
	}

	if err := simulate(cfg, sys, logger); err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	return nil
}

// simulate generates the full synthetic message stream up front (a fixed
// analytic trajectory has no reason to interleave generation with
// consumption) and drains it through the Orchestrator, then appends one
// final body-truth row. Periodic rows at body_data_rate come only from the
// Orchestrator's attached logger, when data_logging_on is set.
func simulate(cfg *config.Root, sys *orchestrator.System, logger *datalog.Logger) error {
	p := *cfg.SimParams
	truth, err := sim.BuildTruth(p)
	if err != nil {
		return err
	}
	rng := sim.NewRNG(p)

	for _, id := range cfg.ImuList {
		imuCfg := cfg.Imu[id]
		gen := sim.BuildImuGen(id, imuCfg, p, rng)
		for t := 0.0; t <= p.MaxTime; t += 1.0 / imuCfg.Rate {
			sys.Orchestrator.Enqueue(gen.Generate(truth, t))
		}
	}

	scene := randomScene(rng, 60)
	var frameID uint64
	for _, id := range cfg.CameraList {
		camCfg := cfg.Camera[id]
		camGen := sim.BuildCameraGen(camCfg, p, rng)
		for t := 0.0; t <= p.MaxTime; t += 1.0 / camCfg.Rate {
			frameID++
			frame := camGen.Frame(truth, t, frameID, scene)
			sys.Orchestrator.Enqueue(tsqueue.Message{
				Kind: tsqueue.KindFrameSample, SensorID: id, Timestamp: t, Frame: &frame,
			})
		}
		if camCfg.FiducialRef == "" {
			continue
		}
		boardID := orchestrator.BoardID(camCfg.FiducialRef)
		fidCfg := cfg.Fiducial[camCfg.FiducialRef]
		fidGen := sim.BuildFiducialGen(id, boardID, camCfg, fidCfg, p, rng)
		for t := 0.0; t <= p.MaxTime; t += 1.0 / camCfg.Rate {
			sys.Orchestrator.Enqueue(fidGen.Generate(truth, t))
		}
	}

	sys.Orchestrator.Run()

	return logger.BodyTruth.WriteRow(datalog.FormatFloats(orchestrator.BodyTruthRow(sys.State)...))
}

// randomScene scatters n static feature points near the origin of the
// trajectory for the synthetic camera to observe; the original simulator's
// feature field is not part of the YAML config, so this stands in for it.
func randomScene(rng *rand.Rand, n int) [][3]float64 {
	pts := make([][3]float64, n)
	for i := range pts {
		pts[i] = [3]float64{
			(rng.Float64() - 0.5) * 10,
			(rng.Float64() - 0.5) * 10,
			5 + rng.Float64()*10,
		}
	}
	return pts
}
