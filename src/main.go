package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"

	"github.com/calvinhus/statistics-project/src/api"
	"github.com/calvinhus/statistics-project/src/config"
	"github.com/calvinhus/statistics-project/src/datasource/email"
	"github.com/calvinhus/statistics-project/src/datasource/file"
	"github.com/calvinhus/statistics-project/src/processor"
	"github.com/calvinhus/statistics-project/src/storage"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("加载配置失败: ", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warning(err.Error())
	}

	if cfg.Mail.Enabled {
		fetchSource(cfg, logger)
	}

	table, err := loadTable(cfg, dcfg, logger)
	if err != nil {
		logger.Fatal(err.Error())
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 定时检查日志大小
	c := cron.New()
	if err := scheduleRotation(c, cfg, logger); err != nil {
		logger.Error("创建定时任务失败: " + err.Error())
		return
	}
	c.Start()
	defer c.Stop()

	if cfg.WatchSource {
		monitor, err := watchSource(ctx, cfg.DataFile, logger)
		if err != nil {
			logger.Warning("无法监控数据文件: " + err.Error())
		} else {
			defer monitor.Close()
		}
	}

	srv := newHTTPServer(cfg, api.NewServer(table, logger, api.NewMetrics()).Routes())
	go func() {
		logger.Info(fmt.Sprintf("看板服务已启动: %s (%d 行)，按Ctrl+C退出", cfg.Server.Addr, table.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP服务异常退出: " + err.Error())
			cancel()
		}
	}()

	waitForShutdown(ctx, srv, cfg, logger)
}

// fetchSource 从邮箱下载最新数据源，失败时沿用本地文件
func fetchSource(cfg *config.Config, logger *storage.Logger) {
	client := email.NewEmailClient(cfg.Mail.Server, cfg.Mail.Username, cfg.Mail.Password)
	handler := email.NewSourceAttachmentHandler(cfg.DataFile)
	if err := email.FetchLatestSource(client, cfg.Mail.TargetSubject, handler, logger); err != nil {
		logger.Error("从邮件获取数据源失败，使用本地文件: " + err.Error())
	}
}

// loadTable 读取并清洗数据源
func loadTable(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) (*processor.Table, error) {
	t1 := time.Now()
	raw, err := file.ReadSource(cfg.DataFile, cfg.SheetName)
	if err != nil {
		return nil, fmt.Errorf("读取数据源失败: %w", err)
	}

	table, err := processor.NewDataProcessor(processor.NewRules(dcfg)).CleanData(raw)
	if err != nil {
		return nil, fmt.Errorf("清洗数据失败: %w", err)
	}

	logger.Info(fmt.Sprintf("数据处理时间：%v，原始 %d 行，清洗后 %d 行", time.Since(t1), raw.Nrow(), table.Len()))
	return table, nil
}

// scheduleRotation 按 cfg.RotateInterval 检查日志是否需要轮转
func scheduleRotation(c *cron.Cron, cfg *config.Config, logger *storage.Logger) error {
	cronSpec := fmt.Sprintf("@every %s", cfg.RotateInterval.Std())
	return c.AddFunc(cronSpec, func() {
		if err := logger.CheckRotate(cfg); err != nil {
			logger.Error("日志轮转失败: " + err.Error())
		}
	})
}

// watchSource 数据表加载后只读，源文件变化时只提示重启
func watchSource(ctx context.Context, path string, logger *storage.Logger) (*file.FileMonitor, error) {
	monitor, err := file.NewFileMonitor(path)
	if err != nil {
		return nil, err
	}

	go func() {
		err := monitor.Watch(ctx, func(changed string) {
			logger.Warning("数据文件已更新，重启服务后生效: " + changed)
		})
		if err != nil {
			logger.Error("文件监控错误: " + err.Error())
		}
	}()
	return monitor, nil
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}
}

// waitForShutdown SIGHUP重新打开日志文件，SIGINT/SIGTERM优雅退出
func waitForShutdown(ctx context.Context, srv *http.Server, cfg *config.Config, logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				if err := logger.Reopen(cfg.LogName); err != nil {
					logger.Error("重新打开日志失败: " + err.Error())
				} else {
					logger.Info("日志文件已重新打开")
				}
				continue
			}
			logger.Info("Received signal: " + sig.String() + ", shutting down...")
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP服务关闭失败: " + err.Error())
		}
		return
	}
}
