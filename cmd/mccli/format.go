package main

import "strings"

// LogLevel 表示服务器日志级别
type LogLevel string

// 日志级别常量
const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

const ansiReset = "\033[0m"

// logLevelColor 日志级别对应的ANSI颜色
var logLevelColor = map[LogLevel]string{
	LogLevelInfo:  "\033[37m", // 白色
	LogLevelDebug: "\033[34m", // 蓝色
	LogLevelWarn:  "\033[33m", // 黄色
	LogLevelError: "\033[31m", // 红色
}

// formatCodes Minecraft 格式控制符到ANSI转义序列的映射
var formatCodes = map[rune]string{
	'0': "\033[30m",   // 黑色
	'1': "\033[34;1m", // 深蓝色
	'2': "\033[32;1m", // 深绿色
	'3': "\033[36;1m", // 湖蓝色
	'4': "\033[31;1m", // 深红色
	'5': "\033[35;1m", // 紫色
	'6': "\033[33m",   // 金色
	'7': "\033[37m",   // 灰色
	'8': "\033[30;1m", // 深灰色
	'9': "\033[34m",   // 蓝色
	'a': "\033[32m",   // 绿色
	'b': "\033[36m",   // 天蓝色
	'c': "\033[31m",   // 红色
	'd': "\033[35m",   // 粉红色
	'e': "\033[33m",   // 黄色
	'f': "\033[37;1m", // 白色

	'k': "\033[5m", // 随机字符，用闪烁代替
	'l': "\033[1m", // 粗体
	'm': "\033[9m", // 删除线
	'n': "\033[4m", // 下划线
	'o': "\033[3m", // 斜体
	'x': "",        // 十六进制颜色前缀，终端不支持
}

// parseMinecraftFormat 把 § 格式控制符转换为ANSI转义序列
// §r 重置到日志级别对应的颜色
func parseMinecraftFormat(text string, level LogLevel) string {
	base, ok := logLevelColor[level]
	if !ok {
		base = logLevelColor[LogLevelInfo]
	}

	var b strings.Builder
	b.WriteString(base)

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '§' && i+1 < len(runes) {
			code := runes[i+1]
			if code >= 'A' && code <= 'Z' {
				code += 'a' - 'A'
			}
			if code == 'r' {
				b.WriteString(ansiReset + base)
				i++
				continue
			}
			if ansi, ok := formatCodes[code]; ok {
				b.WriteString(ansi)
				i++
				continue
			}
		}
		b.WriteRune(runes[i])
	}

	b.WriteString(ansiReset)
	return b.String()
}

// detectLogLevel 从 "[20:19:40 INFO]: ..." 或 "[12:00:00] [Server thread/WARN]: ..." 形式的行首识别日志级别
func detectLogLevel(line string) (LogLevel, bool) {
	if !strings.HasPrefix(line, "[") {
		return "", false
	}
	end := strings.Index(line, "]:")
	if end < 0 {
		return "", false
	}

	prefix := line[:end]
	if i := strings.LastIndexAny(prefix, " /"); i >= 0 {
		prefix = prefix[i+1:]
	}
	switch level := LogLevel(strings.ToUpper(strings.TrimSpace(prefix))); level {
	case LogLevelInfo, LogLevelDebug, LogLevelWarn, LogLevelError:
		return level, true
	case "WARNING":
		return LogLevelWarn, true
	case "SEVERE", "FATAL":
		return LogLevelError, true
	}
	return "", false
}
