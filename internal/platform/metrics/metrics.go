package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はワーカーとインジェストのPrometheusコレクターをまとめます
type Metrics struct {
	registry         *prometheus.Registry
	tasksTotal       *prometheus.CounterVec
	messagesInserted prometheus.Counter
	messagesSkipped  prometheus.Counter
	crawlPages       prometheus.Counter
	jobsEnqueued     prometheus.Counter
	queueDepth       prometheus.Gauge
}

// New は新しいMetricsを作成します
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livechat",
			Name:      "worker_tasks_total",
			Help:      "Total worker tasks executed, by task kind and outcome",
		}, []string{"task", "outcome"}),
		messagesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livechat",
			Name:      "messages_inserted_total",
			Help:      "Number of chat messages newly inserted",
		}),
		messagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livechat",
			Name:      "messages_skipped_total",
			Help:      "Number of chat messages skipped as duplicates",
		}),
		crawlPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livechat",
			Name:      "crawl_pages_total",
			Help:      "Number of upload list pages fetched",
		}),
		jobsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livechat",
			Name:      "jobs_enqueued_total",
			Help:      "Number of jobs newly enqueued",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livechat",
			Name:      "queue_depth",
			Help:      "Queued jobs observed at the last poll",
		}),
	}

	registry.MustRegister(
		m.tasksTotal,
		m.messagesInserted,
		m.messagesSkipped,
		m.crawlPages,
		m.jobsEnqueued,
		m.queueDepth,
	)

	return m
}

// Handler はメトリクスエンドポイントのHTTPハンドラーを返します
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTask はタスク実行の結果を記録します
func (m *Metrics) ObserveTask(task, outcome string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(task, outcome).Inc()
}

// IncMessagesInserted は新規挿入されたメッセージ数を加算します
func (m *Metrics) IncMessagesInserted(n int) {
	if m == nil {
		return
	}
	m.messagesInserted.Add(float64(n))
}

// IncMessagesSkipped は重複スキップされたメッセージ数を加算します
func (m *Metrics) IncMessagesSkipped(n int) {
	if m == nil {
		return
	}
	m.messagesSkipped.Add(float64(n))
}

// IncCrawlPages は取得したページ数を加算します
func (m *Metrics) IncCrawlPages() {
	if m == nil {
		return
	}
	m.crawlPages.Inc()
}

// IncJobsEnqueued は新規キュー投入されたジョブ数を加算します
func (m *Metrics) IncJobsEnqueued() {
	if m == nil {
		return
	}
	m.jobsEnqueued.Inc()
}

// SetQueueDepth はポーリング時点のキュー長を記録します
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
