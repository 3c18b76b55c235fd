package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/rapfii/NEXUS-Terminal-sub001/logger"
)

// Metric is one gateway measurement, e.g. an upstream latency or a cache
// eviction, as seen by registered handlers.
type Metric struct {
	Timestamp time.Time
	Component string
	Name      string
	Value     interface{}
	Type      string
	Fields    logger.Fields
}

// MetricHandler receives every emitted metric. Handlers run synchronously on
// the emitting goroutine and must not block.
type MetricHandler func(Metric)

type MetricHandlerID uint64

// handlerSet hands metrics to subscribers in registration order.
type handlerSet struct {
	mu      sync.RWMutex
	last    MetricHandlerID
	byID    map[MetricHandlerID]MetricHandler
	ordered []MetricHandler
}

func newHandlerSet() *handlerSet {
	return &handlerSet{byID: make(map[MetricHandlerID]MetricHandler)}
}

func (s *handlerSet) add(h MetricHandler) MetricHandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	s.byID[s.last] = h
	s.rebuild()
	return s.last
}

func (s *handlerSet) remove(id MetricHandlerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	s.rebuild()
}

// rebuild refreshes the dispatch slice; callers hold mu.
func (s *handlerSet) rebuild() {
	ids := make([]MetricHandlerID, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	ordered := make([]MetricHandler, len(ids))
	for i, id := range ids {
		ordered[i] = s.byID[id]
	}
	s.ordered = ordered
}

func (s *handlerSet) dispatch(m Metric) {
	s.mu.RLock()
	ordered := s.ordered
	s.mu.RUnlock()
	for _, h := range ordered {
		h(m)
	}
}

var handlers = newHandlerSet()

// RegisterMetricHandler subscribes handler to emitted metrics. A nil handler
// is ignored and yields the zero id.
func RegisterMetricHandler(handler MetricHandler) MetricHandlerID {
	if handler == nil {
		return 0
	}
	return handlers.add(handler)
}

func UnregisterMetricHandler(id MetricHandlerID) {
	if id != 0 {
		handlers.remove(id)
	}
}

// recordMetric logs the metric at debug level and dispatches it. Metrics
// without a name are dropped.
func recordMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) (Metric, bool) {
	if name == "" {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	m := Metric{
		Timestamp: time.Now(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    cloneFields(fields),
	}

	logFields := cloneFields(m.Fields)
	logFields["metric"] = name
	logFields["metric_type"] = metricType
	logFields["value"] = value
	log.WithComponent(component).WithFields(logFields).Debug("metric")

	handlers.dispatch(m)
	return m, true
}

func cloneFields(fields logger.Fields) logger.Fields {
	copied := make(logger.Fields, len(fields)+3)
	for k, v := range fields {
		copied[k] = v
	}
	return copied
}
