package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"tasky/internal/bot"
	"tasky/internal/service"
)

func newBotCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram operator bot",
		Long: `Poll Telegram for operator commands and run the integrity audit on the
configured schedule, sending findings to the admin chat.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return runBot(cmd.Context(), a)
		},
	}
}

func runBot(ctx context.Context, a *app) error {
	if err := a.cfg.RequireBot(); err != nil {
		return err
	}

	telegramBot, err := bot.New(a.cfg, bot.Services{
		Tasks:   a.tasks,
		Users:   a.users,
		Cascade: a.cascade,
		Audit:   a.audit,
	})
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	scheduler := service.NewSchedulerService(time.Local, 30*time.Second)
	jobs, err := scheduler.ScheduleAudit(a.cfg.AuditInterval, a.cfg.AuditAt, telegramBot.SendAuditReport)
	if err != nil {
		return fmt.Errorf("schedule audit: %w", err)
	}
	if jobs > 0 {
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Println("[info] tasky bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	log.Println("[info] shutdown complete.")
	return nil
}
