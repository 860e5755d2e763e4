package mccontrol

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mcbot",
		Subsystem: "rcon",
		Name:      "commands_total",
		Help:      "RCON命令执行次数，result 为 success 或错误类型",
	}, []string{"endpoint", "result"})

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mcbot",
		Subsystem: "rcon",
		Name:      "command_duration_seconds",
		Help:      "RCON命令耗时（含排队与重试）",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"endpoint"})

	reconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mcbot",
		Subsystem: "rcon",
		Name:      "reconnects_total",
		Help:      "连接中断或超时后的重连重试次数",
	}, []string{"endpoint"})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mcbot",
		Subsystem: "rcon",
		Name:      "session_state",
		Help:      "会话状态：0 DISCONNECTED, 1 CONNECTING, 2 AUTHENTICATING, 3 READY, 4 FAILED",
	}, []string{"endpoint"})
)

func observeCommand(endpoint string, result CommandResult) {
	label := "success"
	if !result.Success {
		label = string(result.ErrorKind)
	}
	commandsTotal.WithLabelValues(endpoint, label).Inc()
	commandDuration.WithLabelValues(endpoint).Observe(float64(result.LatencyMs) / 1000)
}
