package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shortvid-saver/internal/config"
	"shortvid-saver/internal/downloader"
	"shortvid-saver/internal/export"
	"shortvid-saver/internal/extract"
	"shortvid-saver/internal/registry"
	"shortvid-saver/internal/resolver"
	"shortvid-saver/internal/server"
	"shortvid-saver/internal/storage"
	"shortvid-saver/internal/utils"
	"shortvid-saver/pkg/models"
)

var (
	configPath string
	saveAs     bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "shortvid-saver",
	Short: "Resolve and save Douyin/TikTok videos from pages and share links",
	Long: `ShortVid Saver extracts downloadable video metadata from short-video
platform pages and share links.

It locates the structured data embedded in a page, searches it for the
video record, collects every known source URL, and picks the best
playable candidate. Share links are followed through their redirect
chain first, with an API attempt before the full page fetch.`,
	Version: "1.0.0",
}

// app bundles the collaborators most commands need
type app struct {
	cfg      *models.Config
	storage  *storage.SQLite
	engine   *extract.Engine
	resolver *resolver.Resolver
}

func loadApp() (*app, error) {
	configManager := config.NewManager()
	cfg, err := configManager.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	store, err := storage.NewSQLite(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("error initializing storage: %w", err)
	}

	reg := registry.NewRegistry()
	if err := reg.RegisterDefaults(cfg); err != nil {
		return nil, fmt.Errorf("error registering platforms: %w", err)
	}
	if len(reg.Descriptors()) == 0 {
		return nil, fmt.Errorf("no platforms enabled in configuration")
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

	return &app{cfg: cfg, storage: store, engine: engine, resolver: res}, nil
}

func printResult(result *models.ExtractionResult) {
	fmt.Printf("📹 %s\n", result.Video.Title)
	fmt.Printf("   Platform: %s\n", result.Platform)
	fmt.Printf("   Author: %s\n", result.Video.Author)
	fmt.Printf("   ID: %s\n", result.Video.ID)
	fmt.Printf("   Format: %s\n", result.Video.Format)
	fmt.Printf("   Source: %s\n", result.Source.Kind)
	fmt.Printf("   Best URL: %s\n", result.Video.BestURL)
	if result.Video.NoWatermarkURL != "" {
		fmt.Printf("   No-watermark URL: %s\n", result.Video.NoWatermarkURL)
	}
	if len(result.CandidateURLs) > 1 {
		fmt.Printf("   Candidates: %d\n", len(result.CandidateURLs))
	}
}

var infoCmd = &cobra.Command{
	Use:   "info [url-or-text]",
	Short: "Resolve video metadata without downloading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.storage.Close()

		result, err := a.resolver.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printResult(result)
		return nil
	},
}

var clipCmd = &cobra.Command{
	Use:   "clip [text]",
	Short: "Resolve a share link from the clipboard (or the given text) and download it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) == 1 {
			text = args[0]
		} else {
			var err error
			text, err = clipboard.ReadAll()
			if err != nil {
				return fmt.Errorf("error reading clipboard: %w", err)
			}
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("clipboard is empty")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.storage.Close()

		result, err := a.resolver.Resolve(cmd.Context(), text)
		if err != nil {
			return err
		}

		printResult(result)
		return downloadResult(cmd.Context(), a, result)
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [url-or-text]",
	Short: "Resolve a video and download the best candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.storage.Close()

		result, err := a.resolver.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printResult(result)
		return downloadResult(cmd.Context(), a, result)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [file.html]",
	Short: "Run extraction over a saved HTML page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pageURL, _ := cmd.Flags().GetString("url")
		if pageURL == "" {
			return fmt.Errorf("--url is required to identify the platform")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("error reading file: %w", err)
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
		if err != nil {
			return fmt.Errorf("error parsing html: %w", err)
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.storage.Close()

		result, err := a.engine.ExtractPage(&extract.Page{URL: pageURL, Doc: doc})
		if err != nil {
			return err
		}

		printResult(result)
		return nil
	},
}

// downloadResult queues the best URL and waits for the final event
func downloadResult(ctx context.Context, a *app, result *models.ExtractionResult) error {
	dm := downloader.NewManager(a.cfg)
	if err := dm.Start(); err != nil {
		return fmt.Errorf("error starting download manager: %w", err)
	}
	defer dm.Stop()

	filename := utils.BuildFilename(result.Video.Author, result.Video.ID, result.Video.Format)

	id, err := dm.Begin(ctx, result.Video.BestURL, filename, saveAs)
	if err != nil {
		return err
	}

	record := &models.HistoryRecord{
		RecordID:   uuid.NewString(),
		DownloadID: id,
		VideoID:    result.Video.ID,
		Platform:   result.Platform,
		Title:      result.Video.Title,
		Author:     result.Video.Author,
		URL:        result.Video.BestURL,
		PageURL:    result.PageURL,
		Filename:   filename,
		Status:     models.DownloadPending,
		Method:     "cli",
	}
	if err := a.storage.UpsertRecord(record); err != nil {
		return fmt.Errorf("error saving history record: %w", err)
	}

	for ev := range dm.Events() {
		if ev.DownloadID != id {
			continue
		}

		patch := map[string]interface{}{
			"status":         ev.State,
			"bytes_received": ev.BytesReceived,
			"total_bytes":    ev.TotalBytes,
			"percent":        ev.Percent,
		}
		if ev.Error != "" {
			patch["last_error"] = ev.Error
		}
		a.storage.PatchRecordByDownloadID(id, patch)

		switch ev.State {
		case models.DownloadInProgress:
			if ev.TotalBytes > 0 {
				fmt.Printf("\r⬇️  %d%% (%s)", ev.Percent, utils.FormatBytes(ev.BytesReceived))
			}
		case models.DownloadComplete:
			fmt.Printf("\n✅ Saved: %s (%s)\n", ev.Filename, utils.FormatBytes(ev.BytesReceived))
			return nil
		case models.DownloadInterrupted:
			fmt.Println()
			return fmt.Errorf("download interrupted: %s", ev.Error)
		}
	}

	return nil
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "History management",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent history records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.storage.Close()

		records, err := a.storage.ListRecords(models.MaxHistoryRecords)
		if err != nil {
			return fmt.Errorf("error listing records: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No records found")
			return nil
		}

		fmt.Printf("📚 History (%d)\n", len(records))
		for i, record := range records {
			title := record.Title
			if title == "" {
				title = record.VideoID
			}
			fmt.Printf("\n%d. %s\n", i+1, title)
			fmt.Printf("   Platform: %s | Author: %s\n", record.Platform, record.Author)
			fmt.Printf("   Status: %s", record.Status)
			if record.TotalBytes > 0 {
				fmt.Printf(" | Size: %s", utils.FormatBytes(record.TotalBytes))
			}
			fmt.Println()
			fmt.Printf("   Created: %s\n", record.CreatedAt.Format("2006-01-02 15:04:05"))
		}

		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export history to csv, xlsx, or json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath := args[0]

		format := export.FormatCSV
		switch {
		case strings.HasSuffix(filePath, ".xlsx"):
			format = export.FormatXLSX
		case strings.HasSuffix(filePath, ".json"):
			format = export.FormatJSON
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.storage.Close()

		records, err := a.storage.ListRecords(models.MaxHistoryRecords)
		if err != nil {
			return fmt.Errorf("error listing records: %w", err)
		}

		exporter := export.NewExporter(export.ExportConfig{
			Format:   format,
			FilePath: filePath,
		})
		if err := exporter.ExportRecords(records); err != nil {
			return err
		}

		fmt.Printf("✅ Exported %d records to %s\n", len(records), filePath)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all history records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.storage.Close()

		if err := a.storage.ClearRecords(); err != nil {
			return fmt.Errorf("error clearing records: %w", err)
		}

		fmt.Println("History cleared")
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		cfg, err := configManager.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		store, err := storage.NewSQLite(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("error initializing storage: %w", err)
		}
		defer store.Close()

		srv := server.NewServer(cfg, store)
		return srv.Run()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		cfg, err := configManager.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		fmt.Printf("📋 Current Configuration\n")
		fmt.Printf("   Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("   Save Path: %s\n", cfg.Download.SavePath)
		fmt.Printf("   Max Workers: %d\n", cfg.Download.MaxWorkers)
		fmt.Printf("   Database: %s\n", cfg.Database.Path)
		fmt.Printf("   Log Level: %s\n", cfg.Log.Level)
		fmt.Printf("   Proxy Enabled: %v\n", cfg.Proxy.Enabled)
		fmt.Printf("   Douyin Enabled: %v\n", cfg.Platforms.Douyin.Enabled)
		fmt.Printf("   TikTok Enabled: %v\n", cfg.Platforms.TikTok.Enabled)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	downloadCmd.Flags().BoolVar(&saveAs, "overwrite", false, "Overwrite an existing file instead of renaming")
	clipCmd.Flags().BoolVar(&saveAs, "overwrite", false, "Overwrite an existing file instead of renaming")
	extractCmd.Flags().String("url", "", "The page URL the HTML was captured from")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(clipCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyClearCmd)

	configCmd.AddCommand(showConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
