package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/BearBump/busnoti/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("busnoti worker starting", "http_addr", cfg.BusNoti.WorkerHTTPAddr, "fake_providers", cfg.Providers.UseFake)
	if err := RunNotifyWorker(ctx, cfg, defaultWorkerFactories()); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
