package mccontrol

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"city.newnan/mcbot/pkg/rcon"
)

// Dispatcher 把领域动作翻译为 Minecraft 命令并解析输出
// 所有方法都返回结果而不是错误，失败原因见 CommandResult.ErrorKind
type Dispatcher struct {
	exec Executor
	now  func() time.Time
}

// NewDispatcher 创建命令分发器
func NewDispatcher(exec Executor) *Dispatcher {
	return &Dispatcher{exec: exec, now: time.Now}
}

func (d *Dispatcher) run(ctx context.Context, action, command string) CommandResult {
	result := d.exec.Execute(ctx, command)
	result.Action = action
	result.Command = command
	return result
}

func invalidResult(action, command string, err error) CommandResult {
	return CommandResult{
		Action:    action,
		Command:   command,
		ErrorKind: rcon.KindInvalidArgument,
		Error:     err.Error(),
	}
}

// withReason 拼接可选的原因文本
func withReason(command, reason string) string {
	if reason = SanitizeText(reason); reason != "" {
		return command + " " + reason
	}
	return command
}

// ExecuteRaw 执行经过校验的原始命令
func (d *Dispatcher) ExecuteRaw(ctx context.Context, command string) CommandResult {
	cmd, err := ValidateRawCommand(command)
	if err != nil {
		return invalidResult("raw", command, err)
	}
	return d.run(ctx, "raw", cmd)
}

// IsDangerous 报告原始命令是否属于危险命令
func (d *Dispatcher) IsDangerous(command string) bool {
	return IsDangerous(command)
}

// KickPlayer kick <player> [reason]
func (d *Dispatcher) KickPlayer(ctx context.Context, player, reason string) CommandResult {
	if err := requirePlayer(player); err != nil {
		return invalidResult("kick", "", err)
	}
	return d.run(ctx, "kick", withReason("kick "+player, reason))
}

// BanPlayer ban <player> [reason]，duration 为 0 表示永久
// 原版 ban 没有时长参数，到期解封由调用方负责
func (d *Dispatcher) BanPlayer(ctx context.Context, player, reason string, duration time.Duration) BanResult {
	if err := requirePlayer(player); err != nil {
		return BanResult{CommandResult: invalidResult("ban", "", err)}
	}
	if duration < 0 {
		return BanResult{CommandResult: invalidResult("ban", "", fmt.Errorf("%w: 时长不能为负", ErrInvalidArgument))}
	}

	result := BanResult{CommandResult: d.run(ctx, "ban", withReason("ban "+player, reason))}
	if result.Success && duration > 0 {
		expires := d.now().Add(duration)
		result.ExpiresAt = &expires
	}
	return result
}

// BanIP ban-ip <ip|player> [reason]
func (d *Dispatcher) BanIP(ctx context.Context, target, reason string) CommandResult {
	if !validBanTarget(target) {
		return invalidResult("ban-ip", "", fmt.Errorf("%w: 无效的IP或玩家名 %q", ErrInvalidArgument, target))
	}
	return d.run(ctx, "ban-ip", withReason("ban-ip "+target, reason))
}

// Pardon pardon <player>
func (d *Dispatcher) Pardon(ctx context.Context, player string) CommandResult {
	if err := requirePlayer(player); err != nil {
		return invalidResult("pardon", "", err)
	}
	return d.run(ctx, "pardon", "pardon "+player)
}

// PardonIP pardon-ip <ip>
func (d *Dispatcher) PardonIP(ctx context.Context, ip string) CommandResult {
	if !validIP(ip) {
		return invalidResult("pardon-ip", "", fmt.Errorf("%w: 无效的IP %q", ErrInvalidArgument, ip))
	}
	return d.run(ctx, "pardon-ip", "pardon-ip "+ip)
}

// ListPlayers list
func (d *Dispatcher) ListPlayers(ctx context.Context) PlayersResult {
	result := PlayersResult{CommandResult: d.run(ctx, "list", "list")}
	result.Players = PlayerList{Online: -1, Max: -1, Names: []string{}}
	if result.Success {
		result.Players = ParsePlayerList(result.Output)
	}
	return result
}

// Say say <message>
func (d *Dispatcher) Say(ctx context.Context, message string) CommandResult {
	msg := SanitizeText(message)
	if msg == "" {
		return invalidResult("say", "", fmt.Errorf("%w: 消息不能为空", ErrInvalidArgument))
	}
	return d.run(ctx, "say", "say "+msg)
}

// Tell tell <player> <message>
func (d *Dispatcher) Tell(ctx context.Context, player, message string) CommandResult {
	if err := requirePlayer(player); err != nil {
		return invalidResult("tell", "", err)
	}
	msg := SanitizeText(message)
	if msg == "" {
		return invalidResult("tell", "", fmt.Errorf("%w: 消息不能为空", ErrInvalidArgument))
	}
	return d.run(ctx, "tell", "tell "+player+" "+msg)
}

// SetGamemode gamemode <mode> <player>
func (d *Dispatcher) SetGamemode(ctx context.Context, player, mode string) CommandResult {
	if err := requirePlayer(player); err != nil {
		return invalidResult("gamemode", "", err)
	}
	if err := requireOneOf("游戏模式", mode, gameModes); err != nil {
		return invalidResult("gamemode", "", err)
	}
	return d.run(ctx, "gamemode", "gamemode "+mode+" "+player)
}

// SetTime time set <value>
func (d *Dispatcher) SetTime(ctx context.Context, value string) CommandResult {
	if !validTime(value) {
		return invalidResult("time", "", fmt.Errorf("%w: 无效的时间 %q", ErrInvalidArgument, value))
	}
	return d.run(ctx, "time", "time set "+value)
}

// SetWeather weather <type> [duration]，duration 单位为秒，0 表示不指定
func (d *Dispatcher) SetWeather(ctx context.Context, weather string, duration int) CommandResult {
	if err := requireOneOf("天气", weather, weathers); err != nil {
		return invalidResult("weather", "", err)
	}
	if duration < 0 {
		return invalidResult("weather", "", fmt.Errorf("%w: 时长不能为负", ErrInvalidArgument))
	}
	command := "weather " + weather
	if duration > 0 {
		command += " " + strconv.Itoa(duration)
	}
	return d.run(ctx, "weather", command)
}

// SetDifficulty difficulty <level>
func (d *Dispatcher) SetDifficulty(ctx context.Context, difficulty string) CommandResult {
	if err := requireOneOf("难度", difficulty, difficulties); err != nil {
		return invalidResult("difficulty", "", err)
	}
	return d.run(ctx, "difficulty", "difficulty "+difficulty)
}

// Op op <player>
func (d *Dispatcher) Op(ctx context.Context, player string) CommandResult {
	if err := requirePlayer(player); err != nil {
		return invalidResult("op", "", err)
	}
	return d.run(ctx, "op", "op "+player)
}

// Deop deop <player>
func (d *Dispatcher) Deop(ctx context.Context, player string) CommandResult {
	if err := requirePlayer(player); err != nil {
		return invalidResult("deop", "", err)
	}
	return d.run(ctx, "deop", "deop "+player)
}

// WhitelistAdd whitelist add <player>
func (d *Dispatcher) WhitelistAdd(ctx context.Context, player string) CommandResult {
	if err := requirePlayer(player); err != nil {
		return invalidResult("whitelist-add", "", err)
	}
	return d.run(ctx, "whitelist-add", "whitelist add "+player)
}

// WhitelistRemove whitelist remove <player>
func (d *Dispatcher) WhitelistRemove(ctx context.Context, player string) CommandResult {
	if err := requirePlayer(player); err != nil {
		return invalidResult("whitelist-remove", "", err)
	}
	return d.run(ctx, "whitelist-remove", "whitelist remove "+player)
}

// WhitelistList whitelist list
func (d *Dispatcher) WhitelistList(ctx context.Context) WhitelistResult {
	result := WhitelistResult{CommandResult: d.run(ctx, "whitelist-list", "whitelist list"), Names: []string{}}
	if result.Success {
		result.Names = ParseWhitelist(result.Output)
	}
	return result
}

// WhitelistOn whitelist on
func (d *Dispatcher) WhitelistOn(ctx context.Context) CommandResult {
	return d.run(ctx, "whitelist-on", "whitelist on")
}

// WhitelistOff whitelist off
func (d *Dispatcher) WhitelistOff(ctx context.Context) CommandResult {
	return d.run(ctx, "whitelist-off", "whitelist off")
}

// WhitelistReload whitelist reload
func (d *Dispatcher) WhitelistReload(ctx context.Context) CommandResult {
	return d.run(ctx, "whitelist-reload", "whitelist reload")
}

// Teleport tp <player> <target|x y z>
func (d *Dispatcher) Teleport(ctx context.Context, player, target string) CommandResult {
	if err := requirePlayer(player); err != nil {
		return invalidResult("tp", "", err)
	}
	if !validTeleportTarget(target) {
		return invalidResult("tp", "", fmt.Errorf("%w: 无效的目标 %q", ErrInvalidArgument, target))
	}
	return d.run(ctx, "tp", "tp "+player+" "+target)
}

// Give give <player> <item> <count>
func (d *Dispatcher) Give(ctx context.Context, player, item string, count int) CommandResult {
	if err := requirePlayer(player); err != nil {
		return invalidResult("give", "", err)
	}
	if !itemIDPattern.MatchString(item) {
		return invalidResult("give", "", fmt.Errorf("%w: 无效的物品ID %q", ErrInvalidArgument, item))
	}
	if count < 1 || count > MaxGiveCount {
		return invalidResult("give", "", fmt.Errorf("%w: 数量必须在 1 到 %d 之间", ErrInvalidArgument, MaxGiveCount))
	}
	return d.run(ctx, "give", fmt.Sprintf("give %s %s %d", player, item, count))
}

// Seed seed
func (d *Dispatcher) Seed(ctx context.Context) CommandResult {
	return d.run(ctx, "seed", "seed")
}

// SaveAll save-all [flush]
func (d *Dispatcher) SaveAll(ctx context.Context, flush bool) CommandResult {
	command := "save-all"
	if flush {
		command += " flush"
	}
	return d.run(ctx, "save-all", command)
}

// SaveOn save-on
func (d *Dispatcher) SaveOn(ctx context.Context) CommandResult {
	return d.run(ctx, "save-on", "save-on")
}

// SaveOff save-off
func (d *Dispatcher) SaveOff(ctx context.Context) CommandResult {
	return d.run(ctx, "save-off", "save-off")
}

// Stop stop
func (d *Dispatcher) Stop(ctx context.Context) CommandResult {
	return d.run(ctx, "stop", "stop")
}
