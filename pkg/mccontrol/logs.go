package mccontrol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	logBatchSize   = 10          // 每收集到这么多行就回调一次
	logMaxWaitTime = time.Second // 缓冲区未满时最长等待时间
	logMaxRetries  = 5           // 流中断后的最大重连次数
)

// FetchLogs 一次性获取服务器日志
func (m *ServerController) FetchLogs(ctx context.Context, options LogOptions) ([]string, error) {
	stream, err := m.openLogStream(ctx, options, false)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var lines []string
	reader := bufio.NewReader(stream)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			content, _, _ := parseLogLine(line)
			lines = append(lines, content)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return lines, fmt.Errorf("读取日志行失败: %v", err)
		}
	}
}

// FollowLogs 持续跟踪日志直到 ctx 结束，日志按批次交给回调
// 流中断时从最后一条日志的时间戳之后重新连接
func (m *ServerController) FollowLogs(ctx context.Context, options LogOptions, callback func([]string)) error {
	var lastTimestamp time.Time
	if options.SinceTime != nil {
		lastTimestamp = *options.SinceTime
	}

	retries := 0
	for {
		opts := options
		if !lastTimestamp.IsZero() {
			since := lastTimestamp.Add(time.Nanosecond)
			opts.SinceTime = &since
			opts.TailLines = nil
		}

		stream, err := m.openLogStream(ctx, opts, true)
		if err == nil {
			retries = 0
			lastTimestamp, err = m.pumpLogs(ctx, stream, lastTimestamp, callback)
			stream.Close()
		}

		if ctx.Err() != nil {
			return nil
		}
		if retries >= logMaxRetries {
			return fmt.Errorf("日志流连接持续失败，已尝试重连%d次: %v", retries, err)
		}
		retries++

		delay := time.Duration(1<<uint(retries-1)) * time.Second
		log.WithField("attempt", retries).Warnf("日志流中断，%s 后重新连接: %v", delay, err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		m.updatePodInfoIfNeeded(true)
	}
}

// WatchLogEvents 跟踪新产生的日志，把识别出的事件逐个交给 handler，直到 ctx 结束
func (m *ServerController) WatchLogEvents(ctx context.Context, handler func(LogEvent)) error {
	var none int64
	return m.FollowLogs(ctx, LogOptions{TailLines: &none}, func(lines []string) {
		now := time.Now()
		for _, line := range lines {
			if event, ok := ParseLogEvent(line, now); ok {
				handler(event)
			}
		}
	})
}

// pumpLogs 读取日志流并按批次回调，返回最后一条日志的时间戳
func (m *ServerController) pumpLogs(ctx context.Context, stream io.Reader, lastTimestamp time.Time, callback func([]string)) (time.Time, error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(stream)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	var buffer []string
	flush := func() {
		if len(buffer) > 0 {
			callback(buffer)
			buffer = nil
		}
	}
	ticker := time.NewTicker(logMaxWaitTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flush()
			return lastTimestamp, ctx.Err()
		case line := <-lines:
			content, ts, ok := parseLogLine(line)
			if ok && !ts.After(lastTimestamp) {
				continue
			}
			if ok {
				lastTimestamp = ts
			}
			buffer = append(buffer, content)
			if len(buffer) >= logBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case err := <-readErr:
			flush()
			if errors.Is(err, io.EOF) {
				err = errors.New("日志流意外结束")
			}
			return lastTimestamp, err
		}
	}
}

func (m *ServerController) openLogStream(ctx context.Context, options LogOptions, follow bool) (io.ReadCloser, error) {
	podName, err := m.PodName()
	if err != nil {
		return nil, fmt.Errorf("更新Pod信息失败: %v", err)
	}

	podLogOpts := corev1.PodLogOptions{
		Container:  options.Container,
		TailLines:  options.TailLines,
		Previous:   options.Previous,
		Follow:     follow,
		Timestamps: true,
	}
	if podLogOpts.Container == "" {
		podLogOpts.Container = m.containerName
	}
	if options.SinceTime != nil {
		since := metav1.NewTime(*options.SinceTime)
		podLogOpts.SinceTime = &since
	}

	stream, err := m.clientset.CoreV1().Pods(m.namespace).GetLogs(podName, &podLogOpts).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取日志流失败: %v", err)
	}
	return stream, nil
}

// parseLogLine 拆分带时间戳的日志行
func parseLogLine(line string) (string, time.Time, bool) {
	if tsEnd := strings.IndexByte(line, ' '); tsEnd > 0 {
		if ts, err := time.Parse(time.RFC3339Nano, line[:tsEnd]); err == nil {
			return strings.TrimRight(line[tsEnd+1:], "\r\n"), ts, true
		}
	}
	return strings.TrimRight(line, "\r\n"), time.Time{}, false
}
