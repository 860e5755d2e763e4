package mccontrol

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// 原版 1.13+: "There are 2 of a max of 20 players online: Steve, Alex"
	// 旧版本与部分服务端: "There are 2/20 players online:" 或 "There are 2 of 20 players online:"
	// Paper: "There are 2 out of maximum 20 players online."
	listPattern      = regexp.MustCompile(`(?i)there (?:are|is) (\d+)\s*(?:of a max of|out of maximum|of|/)\s*(\d+)\s*players? online`)
	listShortPattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	colorCodePattern = regexp.MustCompile(`§[0-9a-fk-orA-FK-OR]`)
)

// StripColorCodes 去除 § 格式代码
func StripColorCodes(s string) string {
	return colorCodePattern.ReplaceAllString(s, "")
}

// ParsePlayerList 解析 list 命令的输出
// 无法识别的输出不会报错，人数字段为 -1
func ParsePlayerList(output string) PlayerList {
	text := StripColorCodes(output)
	result := PlayerList{Online: -1, Max: -1, Names: []string{}}

	match := listPattern.FindStringSubmatchIndex(text)
	if match == nil {
		short := listShortPattern.FindStringSubmatchIndex(text)
		if short == nil {
			return result
		}
		match = short
	}

	result.Online, _ = strconv.Atoi(text[match[2]:match[3]])
	result.Max, _ = strconv.Atoi(text[match[4]:match[5]])

	rest := text[match[1]:]
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return result
	}
	result.Names = splitNames(rest[idx+1:])
	return result
}

// ParseWhitelist 解析 whitelist list 命令的输出
func ParseWhitelist(output string) []string {
	text := StripColorCodes(output)
	if strings.Contains(strings.ToLower(text), "no whitelisted") {
		return []string{}
	}
	idx := strings.LastIndex(text, ":")
	if idx < 0 {
		return []string{}
	}
	return splitNames(text[idx+1:])
}

// ParseSeed 从 "Seed: [-123456]" 中提取种子，无法识别时返回去除空白的原文
func ParseSeed(output string) string {
	text := strings.TrimSpace(StripColorCodes(output))
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		return text[start+1 : end]
	}
	return strings.TrimPrefix(text, "Seed: ")
}

// splitNames 按逗号和换行拆分玩家名，兼容 Paper 按分组输出的 "group: a, b" 行
func splitNames(s string) []string {
	names := []string{}
	for _, line := range strings.Split(s, "\n") {
		if idx := strings.LastIndex(line, ":"); idx >= 0 {
			line = line[idx+1:]
		}
		for _, name := range strings.Split(line, ",") {
			name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), "."))
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
