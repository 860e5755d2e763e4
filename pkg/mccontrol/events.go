package mccontrol

import (
	"regexp"
	"strings"
	"time"
)

// LogEventType 从服务器日志中识别出的事件类型
type LogEventType string

const (
	LogEventJoin           LogEventType = "join"
	LogEventLeave          LogEventType = "leave"
	LogEventChat           LogEventType = "chat"
	LogEventDeath          LogEventType = "death"
	LogEventAdvancement    LogEventType = "advancement"
	LogEventServerStarting LogEventType = "server_starting"
	LogEventServerStarted  LogEventType = "server_started"
	LogEventServerStopping LogEventType = "server_stopping"
	LogEventError          LogEventType = "error"
	LogEventWarning        LogEventType = "warning"
)

// LogEvent 一条日志对应的事件
type LogEvent struct {
	Type    LogEventType `json:"type"`
	Time    time.Time    `json:"time"`
	Level   string       `json:"level"`
	Thread  string       `json:"thread,omitempty"`
	Message string       `json:"message"` // 去掉日志头和颜色代码后的内容

	Player      string `json:"player,omitempty"`
	Chat        string `json:"chat,omitempty"`
	Killer      string `json:"killer,omitempty"`
	Weapon      string `json:"weapon,omitempty"`
	Cause       string `json:"cause,omitempty"`
	Advancement string `json:"advancement,omitempty"`
	Version     string `json:"version,omitempty"`
}

// 日志头的三种写法:
//
//	原版     [12:34:56] [Server thread/INFO]: msg
//	NeoForge [12:34:56] [Server thread/INFO] [minecraft/DedicatedServer]: msg
//	Paper    [12:34:56 INFO]: msg
var logHeaderPattern = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})(?: ([A-Z]+))?\]\s*(?:\[([^\]/]+)/([A-Z]+)\]\s*)?(?:\[[^\]]+\])?:\s*(.*)$`)

var (
	chatPattern        = regexp.MustCompile(`^(?:\[Not Secure\] )?<(\w+)> (.*)$`)
	joinPattern        = regexp.MustCompile(`^(\w+)(?: \(formerly known as \w+\))? joined the game$`)
	leavePattern       = regexp.MustCompile(`^(\w+) left the game$`)
	advancementPattern = regexp.MustCompile(`^(\w+) has (?:made the advancement|completed the challenge|reached the goal) \[(.+)\]$`)
	startingPattern    = regexp.MustCompile(`^Starting (?i:minecraft) server(?: version (.+))?$`)
	startedPattern     = regexp.MustCompile(`^Done \([\d.,]+s\)! For help, type`)
	stoppingPattern    = regexp.MustCompile(`^Stopping (?:the )?server`)
)

type deathPattern struct {
	re    *regexp.Regexp
	cause string
}

// death 把 "{killer}"、"{weapon}" 占位符展开成命名分组，整行匹配
func death(tmpl, cause string) deathPattern {
	expr := strings.NewReplacer(
		`\{killer\}`, `(?P<killer>.+?)`,
		`\{weapon\}`, `(?P<weapon>.+)`,
	).Replace(regexp.QuoteMeta(tmpl))
	return deathPattern{re: regexp.MustCompile(`^(?P<player>\w+) ` + expr + `$`), cause: cause}
}

// 较长的写法排在前面，"was killed by {killer}" 之类的通配放在最后
var deathPatterns = []deathPattern{
	death("was slain by {killer} using {weapon}", "attack"),
	death("was shot by {killer} using {weapon}", "projectile"),
	death("was killed by {killer} using magic", "magic"),
	death("was killed by {killer} using {weapon}", "attack"),
	death("was doomed to fall by {killer} using {weapon}", "fall_attack"),
	death("was doomed to fall by {killer}", "fall_attack"),
	death("fell too far and was finished by {killer} using {weapon}", "fall_finished"),
	death("fell too far and was finished by {killer}", "fall_finished"),
	death("was killed by [Intentional Game Design]", "bed_explosion"),
	death("was killed by magic whilst trying to escape {killer}", "magic_escape"),
	death("was killed by magic", "magic"),
	death("was killed trying to hurt {killer}", "thorns"),
	death("was slain by {killer}", "attack"),
	death("was shot by {killer}", "projectile"),
	death("was fireballed by {killer}", "fireball"),
	death("was pummeled by {killer}", "attack"),
	death("got finished off by {killer}", "attack"),
	death("was impaled by {killer}", "trident"),
	death("was skewered by {killer}", "trident"),
	death("was blown up by {killer}", "explosion"),
	death("blew up", "explosion"),
	death("hit the ground too hard", "fall"),
	death("fell from a high place", "fall"),
	death("fell off a ladder", "fall_ladder"),
	death("fell off some vines", "fall_vines"),
	death("fell off some weeping vines", "fall_weeping_vines"),
	death("fell off some twisting vines", "fall_twisting_vines"),
	death("fell off scaffolding", "fall_scaffolding"),
	death("fell while climbing", "fall_climbing"),
	death("walked into fire whilst fighting {killer}", "fire_combat"),
	death("went up in flames", "fire"),
	death("burned to death", "fire"),
	death("was burnt to a crisp whilst fighting {killer}", "fire_combat"),
	death("tried to swim in lava to escape {killer}", "lava_escape"),
	death("tried to swim in lava", "lava"),
	death("drowned whilst trying to escape {killer}", "drowning_escape"),
	death("drowned", "drowning"),
	death("suffocated in a wall", "suffocation"),
	death("was squished too much", "squish"),
	death("was squashed by {killer}", "squash"),
	death("fell out of the world", "void"),
	death("didn't want to live in the same world as {killer}", "void_escape"),
	death("left the confines of this world", "void"),
	death("was struck by lightning whilst fighting {killer}", "lightning_combat"),
	death("was struck by lightning", "lightning"),
	death("was frozen to death by {killer}", "freeze"),
	death("froze to death", "freeze"),
	death("withered away whilst fighting {killer}", "wither_combat"),
	death("withered away", "wither"),
	death("was roasted in dragon breath by {killer}", "dragon_breath"),
	death("was roasted in dragon breath", "dragon_breath"),
	death("walked into a cactus whilst trying to escape {killer}", "cactus_escape"),
	death("was pricked to death", "cactus"),
	death("starved to death whilst fighting {killer}", "starvation_combat"),
	death("starved to death", "starvation"),
	death("was poked to death by a sweet berry bush whilst trying to escape {killer}", "sweet_berry_escape"),
	death("was poked to death by a sweet berry bush", "sweet_berry"),
	death("was stung to death by {killer}", "bee"),
	death("was stung to death", "bee"),
	death("discovered the floor was lava", "magma_block"),
	death("walked on danger zone due to {killer}", "magma_block"),
	death("experienced kinetic energy whilst trying to escape {killer}", "elytra_crash"),
	death("experienced kinetic energy", "elytra_crash"),
	death("was obliterated by a sonically-charged shriek whilst trying to escape {killer}", "sonic_boom"),
	death("was obliterated by a sonically-charged shriek", "sonic_boom"),
	death("died because of {killer}", "generic"),
	death("died", "generic"),
	death("was killed by {killer}", "attack"),
	death("was killed", "generic"),
}

// ParseLogEvent 识别一行服务器日志（不含 Kubernetes 时间戳）
// 日志头里只有时分秒，日期取自 now；不是日志行或没有可识别的事件时返回 false
func ParseLogEvent(line string, now time.Time) (LogEvent, bool) {
	match := logHeaderPattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if match == nil {
		return LogEvent{}, false
	}

	event := LogEvent{
		Time:    clockTime(match[1], now),
		Level:   match[2],
		Thread:  match[3],
		Message: StripColorCodes(match[5]),
	}
	if event.Level == "" {
		event.Level = match[4]
	}

	switch event.Level {
	case "ERROR", "FATAL":
		event.Type = LogEventError
		return event, true
	case "WARN", "WARNING":
		event.Type = LogEventWarning
		return event, true
	}
	return event, classify(&event)
}

// classify 按消息内容判断事件类型，聊天最先判断，玩家说的话不会被当作其他事件
func classify(e *LogEvent) bool {
	msg := e.Message
	if m := chatPattern.FindStringSubmatch(msg); m != nil {
		e.Type, e.Player, e.Chat = LogEventChat, m[1], m[2]
		return true
	}
	if m := startingPattern.FindStringSubmatch(msg); m != nil {
		e.Type, e.Version = LogEventServerStarting, m[1]
		return true
	}
	if startedPattern.MatchString(msg) {
		e.Type = LogEventServerStarted
		return true
	}
	if stoppingPattern.MatchString(msg) {
		e.Type = LogEventServerStopping
		return true
	}
	if m := joinPattern.FindStringSubmatch(msg); m != nil {
		e.Type, e.Player = LogEventJoin, m[1]
		return true
	}
	if m := leavePattern.FindStringSubmatch(msg); m != nil {
		e.Type, e.Player = LogEventLeave, m[1]
		return true
	}
	if m := advancementPattern.FindStringSubmatch(msg); m != nil {
		e.Type, e.Player, e.Advancement = LogEventAdvancement, m[1], m[2]
		return true
	}
	for _, p := range deathPatterns {
		m := p.re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		e.Type, e.Cause = LogEventDeath, p.cause
		for i, name := range p.re.SubexpNames() {
			switch name {
			case "player":
				e.Player = m[i]
			case "killer":
				e.Killer = m[i]
			case "weapon":
				e.Weapon = m[i]
			}
		}
		return true
	}
	return false
}

// clockTime 把 HH:mm:ss 放到 now 所在的日期；比 now 晚一分钟以上的视为前一天的日志
func clockTime(clock string, now time.Time) time.Time {
	t, err := time.ParseInLocation("15:04:05", clock, now.Location())
	if err != nil {
		return now
	}
	y, mo, d := now.Date()
	at := time.Date(y, mo, d, t.Hour(), t.Minute(), t.Second(), 0, now.Location())
	if at.After(now.Add(time.Minute)) {
		at = at.AddDate(0, 0, -1)
	}
	return at
}
