package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vic-labs/collectivo/internal/cache"
	"github.com/vic-labs/collectivo/internal/config"
	"github.com/vic-labs/collectivo/internal/database"
	"github.com/vic-labs/collectivo/internal/event"
	"github.com/vic-labs/collectivo/internal/ledger"
	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/logic"
	"github.com/vic-labs/collectivo/internal/metrics"
	"github.com/vic-labs/collectivo/internal/sui"
	"github.com/vic-labs/collectivo/internal/task"
	"gorm.io/gorm"
)

// app 各子命令共用的依赖
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	metrics   *metrics.Metrics
	campaigns *logic.CampaignLogic
	proposals *logic.ProposalLogic
	events    *logic.EventLogic
	closers   []func()
}

// bootstrap 加载配置、初始化日志、数据库、缓存和业务逻辑
func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Setup(cfg.Log.Level, cfg.Log.Output, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, metrics: metrics.New(prometheus.DefaultRegisterer)}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}

	var readCache cache.Cache = cache.Nop{}
	if cfg.Redis.Enabled {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, vote stats cache disabled: %v", err)
		} else {
			readCache = cache.NewRedisCache(client, time.Duration(cfg.Redis.TTL)*time.Second)
			a.closers = append(a.closers, func() { _ = client.Close() })
		}
	}

	opts := logic.Options{
		Policy:       ledger.Policy{OvercontributionToleranceBps: cfg.Ledger.ToleranceBps},
		FeeBps:       cfg.Ledger.FeeBps,
		ProposalTTL:  cfg.Governance.ProposalTTL,
		TentativeTTL: cfg.Governance.TentativeTTL,
		Cache:        readCache,
		Metrics:      a.metrics,
	}
	locker := logic.NewCampaignLocker()
	a.campaigns = logic.NewCampaignLogic(db, locker, opts)
	a.proposals = logic.NewProposalLogic(db, locker, opts)
	a.events = logic.NewEventLogic(db)
	return a, nil
}

// chainSyncJob 连接 Sui 节点并创建事件同步任务
func (a *app) chainSyncJob(ctx context.Context) (*task.ChainSyncJob, error) {
	if a.cfg.Chain.PackageId == "" {
		return nil, errors.New("chain.package_id is required for event sync")
	}
	client, err := sui.Dial(ctx, a.cfg.Chain, a.metrics)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)

	processors := event.NewProcessorManager(a.campaigns, a.proposals, client, a.metrics)
	logger.Info("Chain sync handles %d event types from modules %v", len(processors.GetSupportedEventTypes()), a.cfg.Chain.Modules)
	return task.NewChainSyncJob(client, a.events, processors, a.cfg.Chain, a.cfg.Task.SyncInterval), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	logger.Sync()
}
