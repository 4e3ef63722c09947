// Package main is the spider coordination core's entry point: it wires
// the scheduler's TaskQueue, the Fetcher, the HandlerHarness, and the
// ResultWorker together behind a -role flag, the way a pyspider
// deployment runs the same four pieces either in one process or as
// separate OS processes sharing a queue transport.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spider-crawler/spider/internal/config"
	"github.com/spider-crawler/spider/internal/crawltask"
	"github.com/spider-crawler/spider/internal/fetcher"
	"github.com/spider-crawler/spider/internal/handler"
	"github.com/spider-crawler/spider/internal/queue"
	"github.com/spider-crawler/spider/internal/resultworker"
	"github.com/spider-crawler/spider/internal/scheduler"
	"github.com/spider-crawler/spider/internal/storage"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "spider",
		Short: "pyspider-style crawl coordination core",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "spider.yaml", "path to a config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newFetchOneCmd())
	root.AddCommand(newCountersCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRunCmd() *cobra.Command {
	var role string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "run [seed-url]",
		Short: "run the scheduler/fetcher/processor/result pipeline against a seed URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if role != "" {
				cfg.Role = role
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runPipeline(cfg, args[0], duration)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "scheduler|fetcher|processor|result|all (overrides config)")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to run before shutting down")
	return cmd
}

func newFetchOneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-one <url>",
		Short: "perform a single synchronous fetch and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return fetchOne(cfg, args[0])
		},
	}
}

func newCountersCmd() *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "counters [seed-url]",
		Short: "run the pipeline against a seed URL for a short duration (counters are not printed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return runCounters(cfg, args[0], duration)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to crawl before reporting")
	return cmd
}

// pipeline bundles every piece runPipeline/runCounters wires together,
// so both commands can share the same construction logic.
type pipeline struct {
	coordinator *scheduler.Coordinator
	fetcher     *fetcher.Fetcher
	resultW     *resultworker.ResultWorker
	db          *storage.Database
	newTaskQ    queue.Queue
	processQ    queue.Queue
	resultQ     queue.Queue
	project     *demoProject
	logger      *log.Logger
}

func buildPipeline(cfg *config.CrawlerConfig) (*pipeline, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("spider: create data dir: %w", err)
	}
	db, err := storage.Open(cfg.DataDir + "/spider.db")
	if err != nil {
		return nil, err
	}

	fetchQ := queue.NewChannelQueue(cfg.QueueCapacity)
	processQ := queue.NewChannelQueue(cfg.QueueCapacity)
	resultQ := queue.NewChannelQueue(cfg.QueueCapacity)
	newTaskQ := queue.NewChannelQueue(cfg.QueueCapacity)

	taskQueue := scheduler.NewWithTimeout(cfg.RequestsPerSecond, cfg.Burst, cfg.ProcessingTimeout)
	coordinator := scheduler.NewCoordinator(taskQueue, fetchQ)

	var fetchOpts []fetcher.Option
	fetchOpts = append(fetchOpts, fetcher.WithUserAgent(cfg.UserAgent))
	if cfg.Proxy != "" {
		fetchOpts = append(fetchOpts, fetcher.WithProxy(cfg.Proxy))
	}
	if cfg.RenderURL != "" {
		fetchOpts = append(fetchOpts, fetcher.WithRenderBackend(cfg.RenderURL))
	}
	f := fetcher.New(cfg.Concurrency, fetchQ, processQ, fetchOpts...)

	resultW := resultworker.New(db.ResultDB(), resultQ)

	return &pipeline{
		coordinator: coordinator,
		fetcher:     f,
		resultW:     resultW,
		db:          db,
		newTaskQ:    newTaskQ,
		processQ:    processQ,
		resultQ:     resultQ,
		project:     newDemoProject(),
		logger:      log.New(os.Stderr, "spider: ", log.LstdFlags),
	}, nil
}

// runProcessor drains processQ, runs the project handler against each
// fetch result, forwards follows/messages to newTaskQ, saves non-nil
// results to resultQ, and releases the task's lease.
func (p *pipeline) runProcessor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := p.processQ.Get(time.Second)
		if err != nil {
			continue
		}
		tr, ok := raw.(*fetcher.TaskResult)
		if !ok {
			continue
		}

		resp := handler.NewResponse(tr.Result)
		result := p.project.Run(p.project, tr.Task, resp)
		if result.Exception != nil {
			p.logger.Printf("exception in %s %s: %v", tr.Task.Project, tr.Task.URL, result.Exception)
		}
		for _, line := range result.Logs {
			p.logger.Printf("[%s] %s", tr.Task.Project, line)
		}

		for _, follow := range append(result.Follows, result.Messages...) {
			if err := p.newTaskQ.TryPut(follow); err != nil {
				p.logger.Printf("newtask queue full, dropping follow for %s", follow.URL)
			}
		}
		if result.Result != nil {
			item := resultworker.Item{Task: tr.Task, Result: result.Result}
			if err := p.resultQ.TryPut(item); err != nil {
				p.logger.Printf("result queue full, dropping result for %s", tr.Task.URL)
			}
		}

		p.coordinator.Done(tr.Task.TaskID)
	}
}

func (p *pipeline) runNewTaskLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		raw, err := p.newTaskQ.Get(time.Second)
		if err != nil {
			continue
		}
		if task, ok := raw.(*crawltask.Task); ok {
			p.coordinator.Submit(task)
		}
	}
}

func runPipeline(cfg *config.CrawlerConfig, seedURL string, duration time.Duration) error {
	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	seed := &crawltask.Task{
		Project: p.project.project(),
		URL:     seedURL,
		Process: &crawltask.Process{Callback: handler.DefaultCallback},
	}
	seed.TaskID, err = crawltask.DefaultTaskID(seedURL)
	if err != nil {
		return err
	}

	runRole := func(role string) bool { return cfg.Role == "all" || cfg.Role == role }

	if runRole("scheduler") {
		p.coordinator.Submit(seed)
		go p.coordinator.Run(ctx)
		go p.runNewTaskLoop(ctx)
	}
	if runRole("fetcher") {
		go p.fetcher.Run(ctx)
	}
	if runRole("processor") {
		go p.runProcessor(ctx)
	}
	if runRole("result") {
		go p.resultW.Run()
	}

	<-ctx.Done()
	p.fetcher.Quit()
	p.resultW.Quit()
	p.logger.Printf("run complete")
	return nil
}

func fetchOne(cfg *config.CrawlerConfig, rawURL string) error {
	in := queue.NewChannelQueue(1)
	out := queue.NewChannelQueue(1)

	var fetchOpts []fetcher.Option
	fetchOpts = append(fetchOpts, fetcher.WithUserAgent(cfg.UserAgent))
	if cfg.Proxy != "" {
		fetchOpts = append(fetchOpts, fetcher.WithProxy(cfg.Proxy))
	}
	if cfg.RenderURL != "" {
		fetchOpts = append(fetchOpts, fetcher.WithRenderBackend(cfg.RenderURL))
	}
	f := fetcher.New(1, in, out, fetchOpts...)

	taskid, err := crawltask.DefaultTaskID(rawURL)
	if err != nil {
		return err
	}
	task := &crawltask.Task{TaskID: taskid, Project: "adhoc", URL: rawURL}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	result := f.SyncFetch(ctx, task)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runCounters(cfg *config.CrawlerConfig, seedURL string, duration time.Duration) error {
	if err := runPipeline(cfg, seedURL, duration); err != nil {
		return err
	}
	return nil
}

func (d *demoProject) project() string { return "demo" }
