package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/stoplight/pkg/cmdqueue"
	"github.com/cuemby/stoplight/pkg/controlplane"
	"github.com/cuemby/stoplight/pkg/hostprobe"
	"github.com/cuemby/stoplight/pkg/jobrunner"
	"github.com/cuemby/stoplight/pkg/log"
	"github.com/cuemby/stoplight/pkg/mailbox"
	"github.com/cuemby/stoplight/pkg/manager"
	"github.com/cuemby/stoplight/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "stoplightd",
	Short:   "stoplightd schedules containerized jobs on a single host",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("stoplightd version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	runCmd.Flags().String("state-dir", ".", "Directory holding the mailbox and command queue files")
	runCmd.Flags().String("http-addr", "127.0.0.1:5000", "Control plane HTTP bind address")
	runCmd.Flags().Duration("tick-interval", 5*time.Second, "Scheduler tick interval")
	runCmd.Flags().String("runtime", jobrunner.DefaultRuntime.Plain, "Plain container runtime binary")
	runCmd.Flags().String("gpu-runtime", jobrunner.DefaultRuntime.GPU, "GPU-enabled container runtime binary")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler and control plane",
	RunE:  runDaemon,
}

// runDaemon wires together the host probe, the Manager, the two
// cross-process primitives (cmdqueue and mailbox), and the control
// plane's HTTP server, then drives a tick loop until interrupted.
// Everything here runs in a single process: the tick loop and the
// control plane's HTTP server share it and exchange data only through
// the mailbox/queue files under --state-dir. stoplightd has no command
// that starts the control plane or the scheduler on its own.
func runDaemon(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	stateDir, _ := cmd.Flags().GetString("state-dir")
	httpAddr, _ := cmd.Flags().GetString("http-addr")
	tickInterval, _ := cmd.Flags().GetDuration("tick-interval")
	runtimeBin, _ := cmd.Flags().GetString("runtime")
	gpuRuntimeBin, _ := cmd.Flags().GetString("gpu-runtime")

	logFile, err := os.OpenFile(filepath.Join(stateDir, "stoplightd.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
		Output:     io.MultiWriter(os.Stdout, logFile),
	})

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	capacity, err := hostprobe.Probe(probeCtx)
	probeCancel()
	if err != nil {
		log.Fatal(fmt.Sprintf("host probe failed: %v", err))
		return err
	}
	log.WithComponent("stoplightd").Info().
		Int("cpu_cores", capacity.CPUCores).
		Int64("total_ram", capacity.TotalRAM).
		Int64("total_vram", capacity.TotalVRAM).
		Int("gpu_count", capacity.GPUCount).
		Msg("probed host capacity")

	metrics.SetVersion(Version)
	metrics.RegisterComponent("scheduler", false, "not yet ticked")

	queue, err := cmdqueue.Open(stateDir)
	if err != nil {
		metrics.RegisterComponent("cmdqueue", false, err.Error())
		return fmt.Errorf("opening command queue: %w", err)
	}
	metrics.RegisterComponent("cmdqueue", true, "")

	box, err := mailbox.Open(stateDir)
	if err != nil {
		metrics.RegisterComponent("mailbox", false, err.Error())
		return fmt.Errorf("opening status mailbox: %w", err)
	}
	metrics.RegisterComponent("mailbox", true, "")

	mgr := manager.New(capacity, jobrunner.Runtime{Plain: runtimeBin, GPU: gpuRuntimeBin})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	srv := controlplane.New(httpAddr, queue, box)
	serverErrCh := make(chan error, 1)
	go func() { serverErrCh <- srv.ListenAndServe(ctx) }()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.WithComponent("stoplightd").Info().Dur("interval", tickInterval).Msg("scheduler started")

	for {
		select {
		case <-ticker.C:
			runTick(mgr, queue, box)
		case sig := <-sigCh:
			log.WithComponent("stoplightd").Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
			<-serverErrCh
			return nil
		case err := <-serverErrCh:
			if err != nil {
				log.WithComponent("stoplightd").Error().Err(err).Msg("control plane exited")
			}
			return err
		}
	}
}

// runTick drains any commands queued by the control plane since the last
// tick, runs one Manager.Update, and publishes the resulting snapshot
// into the mailbox for /status to read.
func runTick(mgr *manager.Manager, queue *cmdqueue.Queue, box *mailbox.Mailbox) {
	commands, err := queue.Drain()
	if err != nil {
		log.WithComponent("stoplightd").Error().Err(err).Msg("failed to drain command queue")
	}
	for _, c := range commands {
		if c.Kind != cmdqueue.KindAddJob {
			continue
		}
		if err := mgr.AddJob(c.JobDir); err != nil {
			log.WithComponent("stoplightd").Error().Err(err).Str("job_dir", c.JobDir).Msg("failed to add job")
		}
	}

	mgr.Update()
	metrics.UpdateComponent("scheduler", true, "")

	data, err := marshalStatus(mgr)
	if err != nil {
		log.WithComponent("stoplightd").Error().Err(err).Msg("failed to marshal status")
		return
	}
	if err := box.Set(data); err != nil {
		log.WithComponent("stoplightd").Error().Err(err).Msg("failed to publish status")
	}
}

func marshalStatus(mgr *manager.Manager) ([]byte, error) {
	return json.Marshal(mgr.Status())
}
