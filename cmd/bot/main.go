package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gocopy/clob/client"
	"github.com/betbot/gocopy/clob/types"
	"github.com/betbot/gocopy/internal/audit"
	"github.com/betbot/gocopy/internal/domain"
	"github.com/betbot/gocopy/internal/feed"
	"github.com/betbot/gocopy/internal/marketcache"
	"github.com/betbot/gocopy/internal/metrics"
	"github.com/betbot/gocopy/internal/risk"
	"github.com/betbot/gocopy/internal/services"
	"github.com/betbot/gocopy/internal/sizing"
	"github.com/betbot/gocopy/pkg/config"
	"github.com/betbot/gocopy/pkg/logger"
	"github.com/betbot/gocopy/pkg/secretstore"
	"github.com/betbot/gocopy/pkg/shutdown"
	"github.com/betbot/gocopy/pkg/syncgroup"
)

const clobHost = "https://clob.polymarket.com"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "启动失败: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env 可选，线上环境直接注入环境变量
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	log := logrus.WithField("component", "main")
	log.WithFields(logrus.Fields{
		"whale":   cfg.Whale.Address,
		"trading": cfg.Trading.EnableTrading,
		"mock":    cfg.Trading.MockTrading,
	}).Info("🚀 跟单机器人启动")

	privateKeyHex, err := resolvePrivateKey(cfg)
	if err != nil {
		return err
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return fmt.Errorf("解析私钥失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// CLOB 客户端与 API 凭证
	clobClient := client.NewClient(clobHost, types.ChainPolygon, privateKey, nil, cfg.Wallet.FunderAddress)
	if cfg.Trading.EnableTrading && !cfg.Trading.MockTrading {
		creds, err := clobClient.CreateOrDeriveAPIKey(ctx, nil)
		if err != nil {
			return fmt.Errorf("获取 API 凭证失败: %w", err)
		}
		clobClient.SetCreds(creds)
		log.Info("✅ CLOB API 凭证已就绪")
	}

	// 审计日志
	writer, err := audit.NewWriter(cfg.AuditFile)
	if err != nil {
		return err
	}

	// 市场元数据缓存（进行中判定与体育缓冲）
	markets := marketcache.New(client.NewGammaClient(client.DefaultGammaHost))

	// 风控与仓位
	guard := risk.NewGuard(risk.GuardConfig{
		LargeTradeShares:   cfg.Risk.LargeTradeShares,
		ConsecutiveTrigger: cfg.Risk.ConsecutiveTrigger,
		SequenceWindow:     time.Duration(cfg.Risk.SequenceWindowSecs) * time.Second,
		MinDepthUSD:        cfg.Risk.MinDepthUSD,
		TripDuration:       time.Duration(cfg.Risk.TripDurationSecs) * time.Second,
	})

	tiers := sizing.DefaultTiers()
	tiers[len(tiers)-1].MinShares = cfg.Trading.MinWhaleShares
	sizer := sizing.NewSizer(sizing.Config{
		ScalingRatio: cfg.Trading.ScalingRatio,
		Tiers:        tiers,
		SportBuffer:  markets.SportBuffer,
	})

	// 下单通道与重试链
	trader := services.NewClobTrader(clobClient)

	resubCfg := services.DefaultResubmitterConfig()
	resubCfg.PriceIncrement = cfg.Trading.ResubmitPriceIncrement
	var resubTrader services.Trader = trader
	if cfg.Trading.MockTrading {
		resubTrader = &services.MockTrader{}
	}
	resubmitter := services.NewResubmitter(resubCfg, resubTrader, writer)

	engine := services.NewCopyEngine(
		services.CopyEngineConfig{
			EnableTrading: cfg.Trading.EnableTrading,
			MockTrading:   cfg.Trading.MockTrading,
			QueueSize:     1024,
			ReplyTimeout:  10 * time.Second,
			DepthTimeout:  500 * time.Millisecond,
			DepthLevels:   10,
		},
		guard, sizer, trader, trader, resubmitter, writer,
	)

	// 事件源：每个解码出的事件在独立 goroutine 里提交引擎
	session := feed.NewSession(
		feed.DefaultSessionConfig(cfg.Feed.WSSURL, cfg.Whale.Address),
		func(ev *domain.FillEvent) {
			isLive := markets.IsLive(ctx, ev.TokenID)
			status := engine.Submit(ev, isLive)
			log.WithFields(logrus.Fields{
				"tx":     ev.TxHash,
				"status": status,
			}).Info("📝 事件处理完成")
		},
	)

	// metrics/debug 服务（可选）
	if cfg.MetricsAddr != "" {
		if _, err := metrics.StartAsync(ctx, cfg.MetricsAddr); err != nil {
			log.WithError(err).Warn("❌ metrics 服务启动失败")
		} else {
			log.WithField("addr", cfg.MetricsAddr).Info("✅ metrics 服务已启动")
		}
	}

	// 后台任务
	sg := syncgroup.NewSyncGroup()
	sg.Add(func() { engine.Run(ctx) })
	sg.Add(func() { resubmitter.Run(ctx) })
	sg.Add(func() { session.Run(ctx) })
	sg.Run()

	// 优雅关闭：审计写入器最后排干落盘
	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(_ context.Context, _ *sync.WaitGroup) {
		writer.Close()
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("🛑 收到退出信号，开始优雅关闭")

	cancel()
	sg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mgr.Shutdown(shutdownCtx)

	log.Info("✅ 跟单机器人已退出")
	return nil
}

// resolvePrivateKey 私钥优先取环境变量，否则从加密密钥库读取
func resolvePrivateKey(cfg *config.Config) (string, error) {
	if cfg.Wallet.PrivateKey != "" {
		return cfg.Wallet.PrivateKey, nil
	}

	key, err := secretstore.ParseKey(cfg.SecretStoreKey)
	if err != nil {
		return "", fmt.Errorf("解析密钥库密钥失败: %w", err)
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.SecretStorePath,
		EncryptionKey: key,
		ReadOnly:      true,
	})
	if err != nil {
		return "", fmt.Errorf("打开密钥库失败: %w", err)
	}
	defer store.Close()

	pk, found, err := store.GetString("PRIVATE_KEY")
	if err != nil {
		return "", fmt.Errorf("读取私钥失败: %w", err)
	}
	if !found || pk == "" {
		return "", fmt.Errorf("密钥库中没有 PRIVATE_KEY")
	}
	return pk, nil
}
