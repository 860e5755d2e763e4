package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	"city.newnan/mcbot/pkg/mccontrol"
)

// errQuit 用户请求退出控制台
var errQuit = errors.New("quit")

// ScreenManager 管理终端屏幕的显示和交互
type ScreenManager struct {
	ctx         context.Context
	out         io.Writer
	mutex       sync.Mutex
	enableColor bool

	termWidth      int
	termHeight     int
	displayedLines int      // 已显示的日志行数
	lastLogLevel   LogLevel // 上一行日志的级别，用于没有明确级别的续行

	editor *lineEditor

	session    *mccontrol.SessionManager
	dispatcher *mccontrol.Dispatcher
	controller *mccontrol.ServerController // 未启用Kubernetes时为 nil
	options    *cliOptions
}

// newScreenManager 创建一个新的屏幕管理器
func newScreenManager(ctx context.Context, options *cliOptions, session *mccontrol.SessionManager, controller *mccontrol.ServerController) *ScreenManager {
	sm := &ScreenManager{
		ctx:          ctx,
		out:          os.Stdout,
		enableColor:  options.enableColor,
		lastLogLevel: LogLevelInfo,
		editor:       newLineEditor(100),
		session:      session,
		dispatcher:   mccontrol.NewDispatcher(session),
		controller:   controller,
		options:      options,
	}

	sm.updateTermSize()
	sm.clearScreen()
	go sm.monitorTerminalSize()
	return sm
}

// runConsole 运行交互式控制台直到用户退出或 ctx 结束
func runConsole(ctx context.Context, options *cliOptions, session *mccontrol.SessionManager, controller *mccontrol.ServerController) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 设置终端参数
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("设置终端模式失败: %w", err)
	}
	defer term.Restore(fd, oldState)

	screen := newScreenManager(ctx, options, session, controller)
	defer screen.cleanup()

	if err := session.Open(ctx); err != nil {
		screen.printError(fmt.Sprintf("连接RCON失败: %v，将在执行命令时重试", err))
	} else {
		screen.printInfo(fmt.Sprintf("已连接到 %s，输入 /local help 查看本地命令", session.Endpoint()))
	}

	var wg sync.WaitGroup
	if controller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			screen.printInfo("正在连接到Minecraft服务器日志流...")
			err := controller.FollowLogs(ctx, mccontrol.LogOptions{TailLines: &options.maxLogLines}, func(lines []string) {
				for _, line := range lines {
					screen.printLog(line)
				}
			})
			if err != nil && ctx.Err() == nil {
				screen.printError(fmt.Sprintf("获取日志失败: %v", err))
			}
		}()
	}

	err = screen.commandLoop(bufio.NewReader(os.Stdin))
	cancel()
	wg.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// monitorTerminalSize 监听终端大小变化
func (s *ScreenManager) monitorTerminalSize() {
	if runtime.GOOS == "windows" {
		s.pollTerminalSize()
		return
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.Signal(0x1c)) // SIGWINCH
	defer signal.Stop(ch)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ch:
			if s.updateTermSize() {
				s.handleTerminalResize()
			}
		}
	}
}

// pollTerminalSize Windows 没有 SIGWINCH，每秒检测一次
func (s *ScreenManager) pollTerminalSize() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.updateTermSize() {
				s.handleTerminalResize()
			}
		}
	}
}

// updateTermSize 更新终端尺寸，返回尺寸是否变化
func (s *ScreenManager) updateTermSize() bool {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width, height = 80, 24
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	changed := width != s.termWidth || height != s.termHeight
	s.termWidth, s.termHeight = width, height
	return changed
}

// clearScreen 清空屏幕
func (s *ScreenManager) clearScreen() {
	fmt.Fprint(s.out, "\033[2J\033[H")
}

// clearLineLocked 清除当前命令行
func (s *ScreenManager) clearLineLocked() {
	fmt.Fprint(s.out, "\r\033[2K")
}

// promptLocked 重新打印命令提示符与可见的命令
func (s *ScreenManager) promptLocked() {
	text, col := s.editor.visible(s.termWidth - 2)
	if s.enableColor {
		promptColor.Fprint(s.out, "> ")
	} else {
		fmt.Fprint(s.out, "> ")
	}
	fmt.Fprint(s.out, text)
	// 光标移到命令中的位置
	fmt.Fprintf(s.out, "\r\033[%dC", col+2)
}

// printLog 在命令行上方打印一行日志
func (s *ScreenManager) printLog(line string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	line = strings.TrimRight(line, "\r\n")
	s.clearLineLocked()

	// 第一行日志前先输出空行，使日志靠底对齐
	if s.displayedLines == 0 {
		for i := 0; i < s.termHeight-2; i++ {
			fmt.Fprint(s.out, "\r\n")
		}
	}

	level := s.lastLogLevel
	if detected, ok := detectLogLevel(line); ok {
		level = detected
		s.lastLogLevel = detected
	}

	// 原始模式下需要显式回车
	if s.enableColor {
		fmt.Fprint(s.out, parseMinecraftFormat(line, level)+"\r\n")
	} else {
		fmt.Fprint(s.out, mccontrol.StripColorCodes(line)+"\r\n")
	}
	s.displayedLines++
	s.promptLocked()
}

// printInfo 打印信息消息
func (s *ScreenManager) printInfo(message string) {
	s.printLog("[mccli INFO]: " + message)
}

// printError 打印错误消息
func (s *ScreenManager) printError(message string) {
	s.printLog("[mccli ERROR]: " + message)
}

// redraw 重绘命令行
func (s *ScreenManager) redraw() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.clearLineLocked()
	s.promptLocked()
}

// handleTerminalResize 处理终端尺寸变化
func (s *ScreenManager) handleTerminalResize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// 终端变矮时限制已显示行数，tmux 分屏后仍能正确显示
	if s.displayedLines > s.termHeight-1 {
		s.displayedLines = s.termHeight - 1
	}
	s.clearLineLocked()
	s.promptLocked()
}

// commandLoop 读取按键并执行命令，返回 errQuit 表示用户退出
func (s *ScreenManager) commandLoop(reader *bufio.Reader) error {
	s.redraw()
	for {
		if s.ctx.Err() != nil {
			return nil
		}

		r, _, err := reader.ReadRune()
		if err != nil {
			return err
		}

		// 方向键转义序列
		if r == '\033' && reader.Buffered() > 0 {
			if r1, _, err := reader.ReadRune(); err != nil || r1 != '[' {
				continue
			}
			r2, _, err := reader.ReadRune()
			if err != nil {
				continue
			}
			s.mutex.Lock()
			switch r2 {
			case 'A':
				s.editor.navigate(-1)
			case 'B':
				s.editor.navigate(1)
			case 'C':
				s.editor.move(1)
			case 'D':
				s.editor.move(-1)
			}
			s.mutex.Unlock()
			s.redraw()
			continue
		}

		switch r {
		case '\r', '\n':
			s.mutex.Lock()
			command := strings.TrimSpace(s.editor.commit())
			s.mutex.Unlock()
			if command != "" {
				if err := s.executeCommand(command); err != nil {
					return err
				}
			}
			s.redraw()

		case 127, 8: // 退格键
			s.mutex.Lock()
			s.editor.backspace()
			s.mutex.Unlock()
			s.redraw()

		case 3, 4: // Ctrl+C 或 Ctrl+D
			return errQuit

		default:
			if r < 32 {
				continue
			}
			s.mutex.Lock()
			s.editor.insert(r)
			s.mutex.Unlock()
			s.redraw()
		}
	}
}

// executeCommand 执行输入的命令，/local 开头的是本地命令
func (s *ScreenManager) executeCommand(command string) error {
	if strings.HasPrefix(command, "/local") {
		return s.handleLocalCommand(strings.TrimSpace(strings.TrimPrefix(command, "/local")))
	}

	s.printInfo(fmt.Sprintf("执行命令: %s", command))
	result := s.dispatcher.ExecuteRaw(s.ctx, command)
	if err := result.Err(); err != nil {
		s.printError(fmt.Sprintf("执行命令失败: %v", err))
		return nil
	}
	if result.Output == "" {
		s.printInfo(fmt.Sprintf("执行成功 (%d ms)", result.LatencyMs))
		return nil
	}
	for _, line := range strings.Split(result.Output, "\n") {
		s.printLog(line)
	}
	return nil
}

// handleLocalCommand 处理本地CLI命令
func (s *ScreenManager) handleLocalCommand(command string) error {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		parts = []string{"help"}
	}

	switch parts[0] {
	case "status":
		var status *mccontrol.ServerStatus
		var err error
		if s.controller != nil {
			status, err = s.controller.CheckServerStatus()
		} else {
			status, err = mccontrol.Ping(s.options.host, s.options.gamePort)
		}
		if status == nil {
			s.printError(fmt.Sprintf("检查服务器状态失败: %v", err))
			return nil
		}
		if !status.Online {
			s.printError(fmt.Sprintf("服务器离线: %s", status.LastError))
			return nil
		}
		s.printLog(fmt.Sprintf("服务器在线 版本: %s 玩家: %d/%d 延迟: %d ms", status.Version, status.Players, status.MaxPlayers, status.Latency))
		if status.PodName != "" {
			s.printLog(fmt.Sprintf("Pod: %s (%s) IP: %s / %s", status.PodName, status.PodStatus, status.ClusterIP, status.ExternalIP))
		}

	case "players":
		result := s.dispatcher.ListPlayers(s.ctx)
		if err := result.Err(); err != nil {
			s.printError(fmt.Sprintf("获取玩家列表失败: %v", err))
			return nil
		}
		if result.Players.Online < 0 {
			s.printLog(result.Output)
			return nil
		}
		s.printLog(fmt.Sprintf("在线玩家 %d/%d: %s", result.Players.Online, result.Players.Max, strings.Join(result.Players.Names, ", ")))

	case "session":
		info := s.session.Info()
		s.printLog(fmt.Sprintf("会话 %s 状态: %s 最后活动: %s", info.Endpoint, info.State, info.LastActivity.Format(time.DateTime)))

	case "clear":
		s.mutex.Lock()
		s.displayedLines = 0
		s.mutex.Unlock()
		s.clearScreen()
		s.redraw()

	case "help":
		s.printLog("可用的本地命令:")
		s.printLog("  /local status   - 显示服务器状态信息")
		s.printLog("  /local players  - 显示在线玩家")
		s.printLog("  /local session  - 显示RCON会话状态")
		s.printLog("  /local clear    - 清除日志显示")
		s.printLog("  /local help     - 显示此帮助信息")
		s.printLog("  /local exit     - 退出程序")
		s.printLog("")
		s.printLog("所有其他输入将作为RCON命令发送到Minecraft服务器")

	case "exit", "quit":
		return errQuit

	default:
		s.printError(fmt.Sprintf("未知的本地命令: %s", parts[0]))
		s.printLog("输入 '/local help' 获取可用命令列表")
	}
	return nil
}

// cleanup 清理屏幕
func (s *ScreenManager) cleanup() {
	s.clearScreen()
}
