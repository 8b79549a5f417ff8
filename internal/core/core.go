// Package core assembles the device controller, event log, telemetry history,
// advisor and chat assistant from a resolved configuration. Both the web
// server and the terminal panel run the same Core.
package core

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/edgecli/neurolink/internal/advisor"
	"github.com/edgecli/neurolink/internal/assistant"
	"github.com/edgecli/neurolink/internal/chatmem"
	"github.com/edgecli/neurolink/internal/config"
	"github.com/edgecli/neurolink/internal/device"
	"github.com/edgecli/neurolink/internal/eventlog"
	"github.com/edgecli/neurolink/internal/lifecycle"
	"github.com/edgecli/neurolink/internal/llm"
	"github.com/edgecli/neurolink/internal/metrics"
)

// Core is the in-process NeuroLink runtime.
type Core struct {
	Config     *config.Config
	Logs       *eventlog.Log
	Telemetry  *metrics.Store
	Provider   llm.ChatProvider // nil when the provider could not be built
	Prompts    *advisor.PromptStore
	Advisor    *advisor.Advisor
	Controller *lifecycle.Controller
	Assistant  *assistant.Assistant

	wg sync.WaitGroup
}

// Option customises Build.
type Option func(*buildOptions)

type buildOptions struct {
	provider    llm.ChatProvider
	hasProvider bool
	ctrlOpts    []lifecycle.Option
}

// WithProvider bypasses NewChatFromEnv.
func WithProvider(p llm.ChatProvider) Option {
	return func(o *buildOptions) {
		o.provider = p
		o.hasProvider = true
	}
}

// WithControllerOptions passes extra options to the lifecycle controller.
func WithControllerOptions(opts ...lifecycle.Option) Option {
	return func(o *buildOptions) { o.ctrlOpts = append(o.ctrlOpts, opts...) }
}

// Build wires every component. A provider that cannot be built is logged
// and leaves the advisor in its no-credential mode.
func Build(cfg *config.Config, opts ...Option) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	provider := bo.provider
	if !bo.hasProvider {
		p, err := llm.NewChatFromEnv()
		if err != nil {
			log.Printf("[WARN] Chat provider init failed: %v", err)
		} else {
			provider = p
		}
	}
	if provider != nil {
		log.Printf("[INFO] Chat provider: %s (credential: %t)", provider.Name(), provider.HasCredential())
	} else {
		log.Printf("[INFO] Chat provider: disabled")
	}

	prompts := advisor.NewPromptStore(nil)
	if cfg.PromptsFile != "" {
		p, err := advisor.LoadPromptFile(cfg.PromptsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
		prompts.Swap(p)
	}

	adv := advisor.New(provider, advisor.WithPrompts(prompts))

	logs := eventlog.New(cfg.LogCapacity)
	store := metrics.NewStore()

	ctrlOpts := []lifecycle.Option{
		lifecycle.WithTimings(cfg.Timings()),
		lifecycle.WithDevice(cfg.IPAddress, cfg.MACAddress),
		lifecycle.WithRecorder(store),
	}
	ctrlOpts = append(ctrlOpts, bo.ctrlOpts...)
	ctrl := lifecycle.New(adv, logs, ctrlOpts...)

	chat := assistant.New(adv, chatmem.New(chatmem.DefaultGreeting), logs,
		func() device.State { return ctrl.Snapshot().Device })

	return &Core{
		Config:     cfg,
		Logs:       logs,
		Telemetry:  store,
		Provider:   provider,
		Prompts:    prompts,
		Advisor:    adv,
		Controller: ctrl,
		Assistant:  chat,
	}, nil
}

// Start runs the controller and, when a prompts file is configured, the
// prompt watcher. Both stop when ctx is cancelled.
func (c *Core) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Controller.Run(ctx)
	}()

	if c.Config.PromptsFile != "" {
		if err := c.Prompts.Watch(ctx, c.Config.PromptsFile); err != nil {
			log.Printf("[WARN] prompt hot reload disabled: %v", err)
		}
	}
}

// Wait blocks until the controller has stopped, then releases the feeds.
func (c *Core) Wait() {
	c.wg.Wait()
	c.Telemetry.Stop()
	c.Logs.Close()
	c.Assistant.Memory().Close()
}
