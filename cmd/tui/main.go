package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"shortvid-saver/internal/config"
	"shortvid-saver/internal/downloader"
	"shortvid-saver/internal/extract"
	"shortvid-saver/internal/registry"
	"shortvid-saver/internal/resolver"
	"shortvid-saver/internal/storage"
	"shortvid-saver/internal/tui"
	"shortvid-saver/pkg/models"
)

func main() {
	configManager := config.NewManager()
	cfg, err := configManager.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}

	store, err := storage.NewSQLite(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing storage")
	}
	defer store.Close()

	reg := registry.NewRegistry()
	if err := reg.RegisterDefaults(cfg); err != nil {
		log.Fatal().Err(err).Msg("Error registering platforms")
	}
	if len(reg.Descriptors()) == 0 {
		log.Fatal().Msg("No platforms enabled in configuration")
	}
	engine := extract.NewEngine(configManager.GetLogger(), reg.Descriptors()...)

	proxyURL := ""
	if cfg.Proxy.Enabled {
		proxyURL = cfg.Proxy.URL
	}
	res := resolver.New(engine, resolver.Options{
		Timeout:  time.Duration(cfg.Download.Timeout) * time.Second,
		ProxyURL: proxyURL,
		Cookies: map[models.Platform]string{
			models.PlatformDouyin: cfg.Platforms.Douyin.Cookie,
			models.PlatformTikTok: cfg.Platforms.TikTok.Cookie,
		},
	})

	manager := downloader.NewManager(cfg)
	if err := manager.Start(); err != nil {
		log.Fatal().Err(err).Msg("Error starting download manager")
	}
	defer manager.Stop()

	model := tui.InitialModel(res, store, manager)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		log.Fatal().Err(err).Msg("Error running TUI")
	}
}
