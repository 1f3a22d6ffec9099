package event

import (
	"context"
	"sort"
	"sync"

	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/metrics"
	"github.com/vic-labs/collectivo/internal/model"
	"github.com/vic-labs/collectivo/internal/sui"
)

// Processor 事件处理器接口
type Processor interface {
	Process(ctx context.Context, event *model.ChainEventModel) error
	GetEventType() string
}

// ProcessorManager 事件处理器管理器，按短事件类型分发
type ProcessorManager struct {
	mu         sync.RWMutex
	processors map[string]Processor
	metrics    *metrics.Metrics
}

// NewProcessorManager 创建处理器管理器并注册全部处理器
func NewProcessorManager(campaigns CampaignStore, proposals ProposalStore, fetcher ObjectFetcher, m *metrics.Metrics) *ProcessorManager {
	if m == nil {
		m = metrics.Nop()
	}
	manager := &ProcessorManager{
		processors: make(map[string]Processor),
		metrics:    m,
	}

	manager.RegisterProcessor(NewCampaignCreatedProcessor(campaigns, fetcher))
	manager.RegisterProcessor(NewContributionProcessor(campaigns))
	manager.RegisterProcessor(NewWithdrawProcessor(campaigns))
	manager.RegisterProcessor(NewCampaignCompletedProcessor(campaigns))
	manager.RegisterProcessor(NewCampaignDeletedProcessor(campaigns))
	manager.RegisterProcessor(NewNftStatusProcessor(campaigns, "NFTPurchasedEvent", model.NftStatusPurchased))
	manager.RegisterProcessor(NewNftStatusProcessor(campaigns, "NFTListedEvent", model.NftStatusListed))
	manager.RegisterProcessor(NewNftStatusProcessor(campaigns, "NFTDelistedEvent", model.NftStatusDelisted))
	manager.RegisterProcessor(NewProposalCreatedProcessor(proposals, fetcher))
	manager.RegisterProcessor(NewProposalVotedProcessor(proposals))
	manager.RegisterProcessor(NewProposalResolvedProcessor(proposals, "ProposalPassedEvent"))
	manager.RegisterProcessor(NewProposalResolvedProcessor(proposals, "ProposalRejectedEvent"))
	manager.RegisterProcessor(NewProposalDeletedProcessor(proposals))

	logger.Info("ProcessorManager initialized with %d processors", len(manager.processors))
	return manager
}

// RegisterProcessor 注册事件处理器
func (pm *ProcessorManager) RegisterProcessor(processor Processor) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	eventType := processor.GetEventType()
	pm.processors[eventType] = processor
	logger.Debug("Registered processor for event type: %s", eventType)
}

// GetProcessor 获取指定事件类型的处理器
func (pm *ProcessorManager) GetProcessor(eventType string) (Processor, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	processor, exists := pm.processors[sui.ShortType(eventType)]
	return processor, exists
}

// ProcessEvent 处理事件，未知事件类型跳过
func (pm *ProcessorManager) ProcessEvent(ctx context.Context, event *model.ChainEventModel) error {
	processor, exists := pm.GetProcessor(event.EventType)
	if !exists {
		logger.Debug("No processor found for event type: %s", event.EventType)
		pm.metrics.ChainEvent(event.EventType, "ignored")
		return nil
	}

	if err := processor.Process(ctx, event); err != nil {
		pm.metrics.ChainEvent(processor.GetEventType(), "error")
		return err
	}
	pm.metrics.ChainEvent(processor.GetEventType(), "ok")
	return nil
}

// GetSupportedEventTypes 获取支持的事件类型列表
func (pm *ProcessorManager) GetSupportedEventTypes() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	eventTypes := make([]string, 0, len(pm.processors))
	for eventType := range pm.processors {
		eventTypes = append(eventTypes, eventType)
	}
	sort.Strings(eventTypes)
	return eventTypes
}
