/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/moneytrail/apiserver/config"
	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/internal/mail"
	"github.com/moneytrail/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// mailWorkerCmd delivers queued verification emails.
var mailWorkerCmd = &cobra.Command{
	Use:   "mail-worker",
	Short: "Deliver queued outbound mail over SMTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg).WithComponent(log.ComponentWorker)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ, logger)
		if errors.Is(err, mq.ErrDisabled) {
			return errors.New("mail-worker needs MQ_BACKEND set to rabbitmq or pubsub")
		}
		if err != nil {
			return err
		}
		defer queue.Close()

		sender, err := mail.NewSMTPSender(cfg.Mail)
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}

		logger.Info("mail worker started", "channel", mail.Channel)
		err = queue.Subscribe(ctx, mail.Channel, mail.WorkerHandler(sender))
		if errors.Is(err, context.Canceled) {
			logger.Info("mail worker stopped")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(mailWorkerCmd)
}
