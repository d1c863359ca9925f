package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eisenplan/internal/ai"
	"eisenplan/internal/bot"
	"eisenplan/internal/clock"
	"eisenplan/internal/config"
	"eisenplan/internal/identity"
	"eisenplan/internal/repository"
	"eisenplan/internal/rules"
	"eisenplan/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	planRepo := repository.NewPlanRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	engine := rules.NewEngine(taskRepo, rules.DefaultConfig())
	cache := rules.NewExecutionCache(nil)

	classifier := ai.NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	recal := ai.NewRecalibrator(feedbackRepo, nil)

	planSvc := service.NewPlanService(db, taskRepo, planRepo, feedbackRepo, engine, cache, nil)
	taskSvc := service.NewTaskService(db, taskRepo, planRepo, userRepo, classifier, recal, nil)
	alertSvc := service.NewAlertService(taskRepo, planRepo)
	resolver := identity.NewResolver(userRepo, nil)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, resolver, planSvc, taskSvc, alertSvc)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	scheduler := service.NewSchedulerService(clock.Zone)
	reportJob := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("report: %v", err)
		}
	}
	switch {
	case cfg.ReportTime != "":
		if _, err := scheduler.ScheduleDaily(cfg.ReportTime, reportJob); err != nil {
			log.Fatalf("schedule reports: %v", err)
		}
	case cfg.ReportInterval > 0:
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, reportJob); err != nil {
			log.Fatalf("schedule reports: %v", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Eisenhower planner bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
