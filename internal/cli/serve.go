package cli

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/rahul/stepwise/internal/agent"
	"github.com/rahul/stepwise/internal/gateway"
	"github.com/rahul/stepwise/internal/observability"
	"github.com/spf13/cobra"
)

var errNoGateway = errors.New("no gateway is enabled; enable telegram or discord in the config")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer chat messages and run scheduled tasks",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	observability.PrintBanner()
	observability.InitializeTerminal()
	defer observability.CleanupTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the status line's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	model, err := a.model()
	if err != nil {
		return err
	}
	runner := a.runner(model)

	mux := gateway.NewMux()
	defaultChat := ""
	if tg, ok := a.cfg.GetTelegramConfig(); ok {
		g, err := gateway.NewTelegramGateway(tg.Token, runner)
		if err != nil {
			return err
		}
		mux.Register("telegram", g)
		if tg.Channel != "" {
			defaultChat = gateway.ChatID("telegram", tg.Channel)
		}
	}
	if dc, ok := a.cfg.GetDiscordConfig(); ok {
		g, err := gateway.NewDiscordGateway(dc.Token, runner)
		if err != nil {
			return err
		}
		mux.Register("discord", g)
		if dc.Channel != "" && defaultChat == "" {
			defaultChat = gateway.ChatID("discord", dc.Channel)
		}
	}
	if mux.Len() == 0 {
		return errNoGateway
	}
	a.message.Sender = mux
	a.message.DefaultChat = defaultChat

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	scheduler := agent.NewScheduler(runner, a.store, mux)
	go scheduler.Start(ctx)
	go tick(ctx, time.Second, observability.PrintLiveStatus)
	go tick(ctx, 30*time.Second, func() {
		observability.Heartbeat()
		a.logger.LogHeartbeat()
	})

	go func() {
		if err := mux.Start(ctx); err != nil {
			log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
		}
		stop()
	}()

	<-ctx.Done()
	if err := mux.Stop(); err != nil {
		log.Printf("Error stopping gateways: %v", err)
	}

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] CORE DE-INITIALIZED. GOODBYE.\033[0m")
	return nil
}

func tick(ctx context.Context, every time.Duration, fn func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
