package mccontrol

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxRawCommandLength = 1000 // 原始命令最大长度
	MaxTextLength       = 256  // 原因、消息等自由文本的最大长度
	MaxGiveCount        = 2304 // give 单次数量上限
)

// ErrInvalidArgument 参数校验失败，命令不会被发送
var ErrInvalidArgument = errors.New("参数无效")

var (
	playerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`)
	itemIDPattern     = regexp.MustCompile(`^([a-z0-9_.-]+:)?[a-z0-9_./-]+$`)
	coordinatePattern = regexp.MustCompile(`^[~^]?(-?\d+(\.\d+)?)?$`)
	banDurationRegexp = regexp.MustCompile(`^(\d+)([hdwm])$`)
)

// forbiddenChars 可能被用于拼接命令的字符
var forbiddenChars = []string{";", "&", "|", "$", "`", "\n", "\r", "\x00"}

// dangerousCommands 执行前需要额外确认的命令
var dangerousCommands = map[string]bool{
	"stop":           true,
	"save-off":       true,
	"debug":          true,
	"jvm":            true,
	"perf":           true,
	"publish":        true,
	"pardon-ip":      true,
	"setidletimeout": true,
}

var (
	gameModes    = map[string]bool{"survival": true, "creative": true, "adventure": true, "spectator": true}
	difficulties = map[string]bool{"peaceful": true, "easy": true, "normal": true, "hard": true}
	weathers     = map[string]bool{"clear": true, "rain": true, "thunder": true}
	namedTimes   = map[string]bool{"day": true, "night": true, "noon": true, "midnight": true}
)

// ValidPlayerName 校验 Minecraft 玩家名（3-16 位字母、数字或下划线）
func ValidPlayerName(name string) bool {
	return playerNamePattern.MatchString(name)
}

// SanitizeText 去除禁用字符和控制字符并截断到 MaxTextLength
func SanitizeText(s string) string {
	for _, c := range forbiddenChars {
		s = strings.ReplaceAll(s, c, "")
	}
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if utf8.RuneCountInString(s) > MaxTextLength {
		s = string([]rune(s)[:MaxTextLength])
	}
	return strings.TrimSpace(s)
}

// ValidateRawCommand 校验原始命令，返回去除首尾空白和前导斜杠后的命令
func ValidateRawCommand(command string) (string, error) {
	command = strings.TrimPrefix(strings.TrimSpace(command), "/")
	if command == "" {
		return "", fmt.Errorf("%w: 命令不能为空", ErrInvalidArgument)
	}
	for _, c := range forbiddenChars {
		if strings.Contains(command, c) {
			return "", fmt.Errorf("%w: 包含禁用字符 %q", ErrInvalidArgument, c)
		}
	}
	if utf8.RuneCountInString(command) > MaxRawCommandLength {
		return "", fmt.Errorf("%w: 命令过长（最多 %d 个字符）", ErrInvalidArgument, MaxRawCommandLength)
	}
	return command, nil
}

// IsDangerous 报告命令的第一个词是否属于危险命令
func IsDangerous(command string) bool {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(command), "/"))
	if len(fields) == 0 {
		return false
	}
	return dangerousCommands[strings.ToLower(fields[0])]
}

// ParseBanDuration 解析封禁时长，如 12h、7d、2w、1m（m 按 30 天计）
// 空字符串、perm 和 permanent 表示永久，返回 0
func ParseBanDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "perm", "permanent":
		return 0, nil
	}

	match := banDurationRegexp.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("%w: 无法解析的时长 %q", ErrInvalidArgument, s)
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: 无法解析的时长 %q", ErrInvalidArgument, s)
	}

	unit := time.Hour
	switch match[2] {
	case "d":
		unit = 24 * time.Hour
	case "w":
		unit = 7 * 24 * time.Hour
	case "m":
		unit = 30 * 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

func requirePlayer(name string) error {
	if !ValidPlayerName(name) {
		return fmt.Errorf("%w: 无效的玩家名 %q", ErrInvalidArgument, name)
	}
	return nil
}

func requireOneOf(kind, value string, allowed map[string]bool) error {
	if !allowed[value] {
		return fmt.Errorf("%w: 无效的%s %q", ErrInvalidArgument, kind, value)
	}
	return nil
}

// validBanTarget IP 地址或玩家名
func validBanTarget(target string) bool {
	return net.ParseIP(target) != nil || ValidPlayerName(target)
}

func validIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

// validTeleportTarget 玩家名或 "x y z" 坐标（支持 ~ 与 ^ 相对坐标）
func validTeleportTarget(target string) bool {
	if ValidPlayerName(target) {
		return true
	}
	parts := strings.Fields(target)
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if !coordinatePattern.MatchString(p) {
			return false
		}
	}
	return true
}

// validTime 命名时间或非负 tick 数
func validTime(value string) bool {
	if namedTimes[value] {
		return true
	}
	n, err := strconv.Atoi(value)
	return err == nil && n >= 0
}
