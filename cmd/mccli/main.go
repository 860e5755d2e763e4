// mccli 是通过 RCON 管理 Minecraft 服务器的命令行工具
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"city.newnan/mcbot/internal/config"
	"city.newnan/mcbot/pkg/mccontrol"
	"city.newnan/mcbot/pkg/rcon"
)

// CLI选项
type cliOptions struct {
	// RCON配置
	host     string
	port     int
	password string
	timeout  float64 // 单位：秒

	// Minecraft状态查询
	gamePort int

	// K8s配置选项，启用后控制台会显示服务器日志
	k8s                  bool
	runMode              string
	kubeconfigPath       string
	namespace            string
	statefulSet          string
	podLabelSelector     string
	serviceLabelSelector string
	containerName        string

	// CLI配置
	maxLogLines int64
	enableColor bool
	verbose     bool
}

// CLI颜色设置
var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	promptColor  = color.New(color.FgCyan, color.Bold)
)

func (o *cliOptions) rconConfig() rcon.Config {
	return rcon.Config{
		Host:     o.host,
		Port:     o.port,
		Password: o.password,
		Timeout:  secondsToDuration(o.timeout),
	}
}

func (o *cliOptions) k8sConfig() mccontrol.K8sConfig {
	return mccontrol.K8sConfig{
		RunMode:              o.runMode,
		KubeconfigPath:       o.kubeconfigPath,
		Namespace:            o.namespace,
		StatefulSetName:      o.statefulSet,
		PodLabelSelector:     o.podLabelSelector,
		ServiceLabelSelector: o.serviceLabelSelector,
		ContainerName:        o.containerName,
	}
}

// newRootCommand 创建根命令，密码等参数默认取自与服务端相同的环境变量
func newRootCommand() *cobra.Command {
	options := &cliOptions{}

	root := &cobra.Command{
		Use:           "mccli",
		Short:         "通过 RCON 管理 Minecraft 服务器",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.NoColor = !options.enableColor
			if options.verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.WarnLevel)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&options.host, "host", "H", config.GetEnv("RCON_HOST", "localhost"), "RCON 主机")
	flags.IntVarP(&options.port, "port", "P", config.GetEnvInt("RCON_PORT", rcon.DefaultPort), "RCON 端口")
	flags.StringVarP(&options.password, "password", "p", config.GetEnv("RCON_PASSWORD", ""), "RCON 密码 (默认读取 RCON_PASSWORD)")
	flags.Float64VarP(&options.timeout, "timeout", "t", config.GetEnvSeconds("RCON_TIMEOUT", rcon.DefaultTimeout).Seconds(), "单条命令超时秒数")
	flags.IntVar(&options.gamePort, "game-port", config.GetEnvInt("MINECRAFT_PORT", 25565), "Minecraft 游戏端口")

	flags.BoolVar(&options.k8s, "k8s", config.GetEnvBool("K8S_ENABLED", false), "通过 Kubernetes 获取服务器日志与状态")
	flags.StringVar(&options.runMode, "mode", config.GetEnv("K8S_RUN_MODE", "OutOfCluster"), "运行模式 (InCluster 或 OutOfCluster)")
	flags.StringVar(&options.kubeconfigPath, "kubeconfig", config.GetEnv("K8S_KUBECONFIG", ""), "kubeconfig 文件路径 (默认为 ~/.kube/config)")
	flags.StringVar(&options.namespace, "namespace", config.GetEnv("K8S_NAMESPACE", "minecraft"), "Kubernetes 命名空间")
	flags.StringVar(&options.statefulSet, "statefulset", config.GetEnv("K8S_STATEFULSET", "minecraft"), "服务器 StatefulSet 名称")
	flags.StringVar(&options.podLabelSelector, "pod-selector", config.GetEnv("K8S_POD_SELECTOR", "app=minecraft"), "Pod 标签选择器")
	flags.StringVar(&options.serviceLabelSelector, "service-selector", config.GetEnv("K8S_SERVICE_SELECTOR", ""), "Service 标签选择器 (默认与 pod-selector 相同)")
	flags.StringVar(&options.containerName, "container", config.GetEnv("K8S_CONTAINER", "minecraft"), "容器名称")

	flags.Int64Var(&options.maxLogLines, "max-log-lines", 100, "控制台初始显示的最大日志行数")
	flags.BoolVar(&options.enableColor, "color", isatty.IsTerminal(os.Stdout.Fd()), "启用彩色输出")
	flags.BoolVarP(&options.verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(
		newExecCommand(options),
		newPlayersCommand(options),
		newStatusCommand(options),
		newConsoleCommand(options),
	)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		errorColor.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
