// Command emi-reminders runs one EMI reminder sweep and then drains the
// notification outbox, for use outside the API process (cron, ops shell).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"admissions-api/config"
	"admissions-api/services"
	"admissions-api/utils"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var (
		skipDispatch bool
		maxBatches   int
	)
	flag.BoolVar(&skipDispatch, "skip-dispatch", false, "only enqueue reminders; leave delivery to the API process")
	flag.IntVar(&maxBatches, "max-batches", 20, "maximum outbox batches to deliver")
	flag.Parse()

	if maxBatches < 1 {
		log.Fatal("max-batches must be at least 1")
	}

	settings := config.LoadSettings()
	db, err := config.InitDB(settings)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := config.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	codec, err := utils.NewIDCodec(settings.ProgramCode, settings.AdmissionYear, settings.IDSecret)
	if err != nil {
		log.Fatalf("id codec: %v", err)
	}

	var notifier services.Notifier = services.LogNotifier{}
	if mailer := config.LoadMailerSettings(); mailer.Configured() {
		notifier = services.NewSMTPNotifier(mailer)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notices := services.NewNotices(codec, settings.AdminNotifyEmail, settings.AppBaseURL)
	dispatcher := services.NewDispatcher(db, notifier, settings.OutboxPollInterval)
	job := services.NewEMIReminderJob(db, notices, dispatcher)

	summary, err := job.Run(ctx)
	if err != nil {
		if errors.Is(err, services.ErrReminderSweepRunning) {
			log.Fatal("emi reminder sweep already running")
		}
		log.Fatalf("emi reminder sweep failed: %v", err)
	}
	fmt.Printf("Candidates: %d, enqueued: %d, skipped: %d, failed: %d\n",
		summary.Candidates, summary.Enqueued, summary.Skipped, summary.Failed)

	var sent, failed int
	if !skipDispatch {
		for i := 0; i < maxBatches; i++ {
			s, f, err := dispatcher.DispatchPending(ctx)
			sent += s
			failed += f
			if err != nil {
				log.Fatalf("outbox dispatch failed: %v", err)
			}
			// a batch that delivered nothing is either empty or all retries
			if s == 0 {
				break
			}
		}
		fmt.Printf("Notifications sent: %d, failed attempts: %d\n", sent, failed)
	}

	if summary.Failed > 0 || failed > 0 {
		os.Exit(2)
	}
}
