package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// RegisterHandlers subscribes the manager to notifications.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) []*dispatcher.Subscription {
	subs := []*dispatcher.Subscription{
		// position updates - buffered, flush early on a long queue
		d.Subscribe(dispatcher.TopicLocation, m.handleLocation, dispatcher.Buffered(100), dispatcher.Logged()),
	}
	for _, dt := range model.DataTypes {
		subs = append(subs, d.Subscribe(dispatcher.DataTopic(string(dt)), m.handleDataChanged, dispatcher.Buffered(10), dispatcher.Blocking()))
	}
	return subs
}

func (m *Manager) handleLocation(dispatcher.Event) error {
	if m.deps.Store == nil || m.deps.Breadcrumbs.Len() < flushBatch {
		return nil
	}
	_, err := m.Flush(context.Background())
	return err
}

// handleDataChanged records when a data type was last re-imported.
func (m *Manager) handleDataChanged(e dispatcher.Event) error {
	dt := model.DataType(strings.TrimPrefix(e.Topic, "data."))
	m.mu.Lock()
	m.dataChanged[dt] = e.Timestamp
	m.mu.Unlock()
	m.deps.LogManager.WriteLog("worker:handleDataChanged", fmt.Sprintf("Data changed: %s", dt), "INFO")
	return nil
}
