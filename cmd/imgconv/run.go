package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"imgconv"
	"imgconv/internal/bench"
	"imgconv/internal/logger"
	"imgconv/internal/metrics"
	"imgconv/internal/pipeline"
	"imgconv/internal/processor"
	"imgconv/internal/server"
	"imgconv/internal/sleeper"
	"imgconv/internal/storage"
	"imgconv/internal/stream"
)

func (c *cli) benchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time repeated conversions of one image",
		Args:  cobra.NoArgs,
		RunE:  c.bench,
	}

	defaults := bench.DefaultConfig()
	flags := cmd.Flags()
	flags.StringP("input", "i", defaults.Input, "Image to convert")
	flags.StringP("output", "o", defaults.Output, "File receiving the last converted image")
	flags.StringP("format", "f", defaults.Format, "Target format")
	flags.IntP("iterations", "n", defaults.Iterations, "Number of timed conversions")
	flags.Int("concurrency", defaults.Concurrency, "Number of concurrent conversions")
	flags.Int("warmup", defaults.Warmup, "Number of untimed conversions run first")

	for _, name := range []string{"input", "output", "format", "iterations", "concurrency", "warmup"} {
		bindFlag(flags.Lookup(name), "bench."+name)
	}
	return cmd
}

func (c *cli) bench(cmd *cobra.Command, args []string) error {
	reporter, err := metrics.NewReporter()
	if err != nil {
		return err
	}

	runner, err := bench.NewRunner(c.cfg.Bench, imgconv.NewConverter(c.opts...), reporter, c.log)
	if err != nil {
		return err
	}

	result, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Milliseconds())
	return nil
}

func (c *cli) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversion API over HTTP",
		Args:  cobra.NoArgs,
		RunE:  c.serve,
	}

	cmd.Flags().String("addr", server.DefaultConfig().Addr, "Address to listen on")
	bindFlag(cmd.Flags().Lookup("addr"), "server.addr")
	return cmd
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	reporter, err := metrics.NewReporter()
	if err != nil {
		return err
	}

	srv, err := server.New(c.cfg.Server, imgconv.NewConverter(c.opts...), reporter, c.log)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(srv.Serve)
	g.Go(func() error {
		<-ctx.Done()
		c.log.Info("Shutting down the conversion API.")
		return srv.Stop(context.Background())
	})
	return g.Wait()
}

func (c *cli) workerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Convert images requested over kafka and kept in object storage",
		Args:  cobra.NoArgs,
		RunE:  c.worker,
	}

	cmd.Flags().Int("pipelines", 1, "Number of concurrent pipelines")
	bindFlag(cmd.Flags().Lookup("pipelines"), "worker.pipelines")
	cmd.Flags().String("metrics-addr", ":9090", "Address serving the prometheus metrics")
	bindFlag(cmd.Flags().Lookup("metrics-addr"), "worker.metrics.addr")
	return cmd
}

func (c *cli) worker(cmd *cobra.Command, args []string) error {
	conf := c.cfg.Worker
	log := c.log.WithField(logger.FieldFunction, "worker")

	reporter, err := metrics.NewReporter()
	if err != nil {
		return err
	}

	store, err := storage.NewMinioStorage(conf.Storage, c.log)
	if err != nil {
		return err
	}

	proc, err := processor.NewProcessor(conf.Processor, imgconv.NewConverter(c.opts...), store, reporter, c.log)
	if err != nil {
		return err
	}

	pipelines := make([]*pipeline.Pipeline, 0, conf.Pipelines)
	for i := 0; i < conf.Pipelines; i++ {
		p, closeStreams, err := c.newPipeline(proc, reporter)
		if err != nil {
			log.Error(err, "Failed to create a pipeline.")
			return err
		}
		defer closeStreams()
		pipelines = append(pipelines, p)
	}

	metricsServer := metrics.NewServer(conf.Metrics, reporter)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(metricsServer.Serve)
	g.Go(func() error {
		<-ctx.Done()
		return metricsServer.Stop(context.Background())
	})

	for _, p := range pipelines {
		p := p
		g.Go(func() error {
			return p.Run(ctx)
		})
	}

	log.Infof("Started %d pipelines.", conf.Pipelines)
	return g.Wait()
}

// newPipeline wires a pipeline to its own kafka reader and writer.
func (c *cli) newPipeline(proc pipeline.Processor, reporter *metrics.Reporter) (*pipeline.Pipeline, func(), error) {
	conf := c.cfg.Worker

	reader, err := stream.NewReader(conf.Reader)
	if err != nil {
		return nil, nil, err
	}

	writer, err := stream.NewWriter(conf.Writer)
	if err != nil {
		reader.Close()
		return nil, nil, err
	}

	closeStreams := func() {
		reader.Close()
		writer.Close()
	}

	backoff, err := sleeper.NewExponentialSleeper(conf.BackoffInitial, conf.BackoffMax)
	if err != nil {
		closeStreams()
		return nil, nil, err
	}

	p, err := pipeline.NewPipeline(reader, writer, proc, backoff, reporter, c.log)
	if err != nil {
		closeStreams()
		return nil, nil, err
	}

	return p, closeStreams, nil
}
