package main

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ollayorbek0833/library-manage-bot/db"
	"github.com/ollayorbek0833/library-manage-bot/pacing"
	"github.com/ollayorbek0833/library-manage-bot/scheduler"
	"github.com/ollayorbek0833/library-manage-bot/tgbot"
)

type config struct {
	TgToken   string `json:"TgToken"`
	DBConnStr string `json:"DBConnStr"`
	OwnerID   int64  `json:"OwnerID"`
	Timezone  string `json:"Timezone"`
}

// getLogger creates a logger in global namespace
func getLogger() (*zap.SugaredLogger, func() error) {
	logger, _ := zap.NewDevelopment(zap.Fields(zap.String("ns", "ReadingTracker")))

	log := logger.Sugar()
	return log, logger.Sync
}

// readConfig reads configuration from the given file
func readConfig(cfgFile string) (*config, error) {
	raw, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, err
	}

	var cfg config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "couldn't unmarshal configuration")
	}

	if cfg.TgToken == "" || cfg.DBConnStr == "" || cfg.OwnerID == 0 {
		return nil, errors.New("configuration is missing TgToken, DBConnStr or OwnerID")
	}

	return &cfg, nil
}

func main() {
	logger, syncLogs := getLogger()
	defer syncLogs()

	cfgFile, ok := os.LookupEnv("CONFIG_FILE")
	if !ok {
		logger.Fatalf("Configuration file name isn't set")
	}

	cfg, err := readConfig(cfgFile)
	if err != nil {
		logger.Fatalw("Couldn't read configuration", "file", cfgFile, "err", err)
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			logger.Warnw("Couldn't load timezone, falling back to UTC", "timezone", cfg.Timezone, "err", err)
			loc = time.UTC
		}
	}

	d, err := db.Init(cfg.DBConnStr)
	if err != nil {
		logger.Fatalw("Couldn't initialize database", "err", err)
	}
	defer d.Close()

	err = d.EnsureDefaultSettings(map[string]string{
		scheduler.KeyReminderTime:    "08:00",
		pacing.KeyStartPages:         strconv.Itoa(pacing.DefaultStartPages),
		pacing.KeyWeeklyIncrement:    strconv.Itoa(pacing.DefaultWeeklyIncrement),
		pacing.KeyIncrementEveryDays: strconv.Itoa(pacing.DefaultIncrementEveryDays),
	})
	if err != nil {
		logger.Fatalw("Couldn't seed default settings", "err", err)
	}

	b, err := tgbot.NewTBot(cfg.TgToken, cfg.OwnerID, d, loc, logger)
	if err != nil {
		logger.Fatalw("Couldn't initialize bot", "err", err)
	}

	s := scheduler.New(d, b, loc, logger)
	b.Scheduler = s

	go s.Run()
	b.Run()
}
