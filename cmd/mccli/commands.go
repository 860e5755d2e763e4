package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"city.newnan/mcbot/pkg/mccontrol"
)

var errNoPassword = errors.New("必须提供 RCON 密码 (--password 或 RCON_PASSWORD)")

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// openSession 创建RCON会话，连接在第一条命令时建立
func openSession(options *cliOptions) (*mccontrol.SessionManager, error) {
	if options.password == "" {
		return nil, errNoPassword
	}
	return mccontrol.NewSessionManager(options.rconConfig()), nil
}

// printOutput 打印服务器输出，未启用颜色时去掉格式控制符
func printOutput(w io.Writer, options *cliOptions, output string) {
	if output == "" {
		return
	}
	if options.enableColor {
		fmt.Fprintln(w, parseMinecraftFormat(output, LogLevelInfo))
	} else {
		fmt.Fprintln(w, mccontrol.StripColorCodes(output))
	}
}

func newExecCommand(options *cliOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "exec <command...>",
		Short: "执行一条命令并输出服务器响应",
		Example: `  mccli exec list
  mccli exec -- say "服务器将在 5 分钟后重启"
  mccli exec --confirm stop`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(options)
			if err != nil {
				return err
			}
			defer session.Close()

			command := strings.Join(args, " ")
			dispatcher := mccontrol.NewDispatcher(session)
			if dispatcher.IsDangerous(command) && !confirm {
				return fmt.Errorf("命令 %q 可能影响服务器运行，确认后请加上 --confirm", command)
			}

			result := dispatcher.ExecuteRaw(cmd.Context(), command)
			if err := result.Err(); err != nil {
				return err
			}
			printOutput(cmd.OutOrStdout(), options, result.Output)
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "确认执行危险命令")
	return cmd
}

func newPlayersCommand(options *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "列出在线玩家",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(options)
			if err != nil {
				return err
			}
			defer session.Close()

			result := mccontrol.NewDispatcher(session).ListPlayers(cmd.Context())
			if err := result.Err(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			players := result.Players
			if players.Online < 0 {
				// 无法识别的格式，原样输出
				printOutput(w, options, result.Output)
				return nil
			}
			successColor.Fprintf(w, "在线玩家: %d/%d\n", players.Online, players.Max)
			for _, name := range players.Names {
				fmt.Fprintf(w, "  %s\n", name)
			}
			return nil
		},
	}
}

func newStatusCommand(options *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "查询服务器在线状态",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status *mccontrol.ServerStatus
			if options.k8s {
				controller, err := newController(options)
				if err != nil {
					return err
				}
				defer controller.Close()
				status, err = controller.CheckServerStatus()
				if status == nil {
					return err
				}
			} else {
				var err error
				if status, err = mccontrol.Ping(options.host, options.gamePort); err != nil && status == nil {
					return err
				}
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

// printStatus 打印服务器状态
func printStatus(w io.Writer, status *mccontrol.ServerStatus) {
	if !status.Online {
		errorColor.Fprintf(w, "服务器离线: %s\n", status.LastError)
		return
	}
	successColor.Fprintf(w, "服务器在线! 版本: %s, 玩家: %d/%d\n", status.Version, status.Players, status.MaxPlayers)
	fmt.Fprintf(w, "描述: %s\n", status.Description)
	fmt.Fprintf(w, "延迟: %d ms\n", status.Latency)
	if status.PodName != "" {
		fmt.Fprintf(w, "Pod: %s (%s)\n", status.PodName, status.PodStatus)
		fmt.Fprintf(w, "IP: %s (集群内), %s (外部)\n", status.ClusterIP, status.ExternalIP)
	}
}

// newController 按命令行参数创建Kubernetes控制器
func newController(options *cliOptions) (*mccontrol.ServerController, error) {
	clientset, err := mccontrol.NewKubernetesClient(options.k8sConfig())
	if err != nil {
		return nil, fmt.Errorf("创建Kubernetes客户端失败: %w", err)
	}
	return mccontrol.NewServerController(clientset, options.k8sConfig(), options.gamePort), nil
}

func newConsoleCommand(options *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "打开交互式控制台",
		Long:  "打开交互式控制台。标准输入不是终端时逐行读取并执行命令。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(options)
			if err != nil {
				return err
			}
			defer session.Close()

			var controller *mccontrol.ServerController
			if options.k8s {
				if controller, err = newController(options); err != nil {
					return err
				}
				defer controller.Close()
			}

			if !isatty.IsTerminal(os.Stdin.Fd()) {
				return runLines(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), options, session)
			}
			return runConsole(cmd.Context(), options, session, controller)
		},
	}
}

// runLines 逐行执行输入中的命令，空行与 # 开头的行会被跳过
func runLines(ctx context.Context, in io.Reader, out io.Writer, options *cliOptions, exec mccontrol.Executor) error {
	dispatcher := mccontrol.NewDispatcher(exec)
	scanner := bufio.NewScanner(in)
	failed := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		result := dispatcher.ExecuteRaw(ctx, line)
		if err := result.Err(); err != nil {
			errorColor.Fprintf(out, "%s: %v\n", line, err)
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		printOutput(out, options, result.Output)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d 条命令执行失败", failed)
	}
	return nil
}
