package mccontrol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ErrNoPod 没有找到匹配标签的Pod
var ErrNoPod = errors.New("未找到服务器Pod")

// ServerController 管理部署在 Kubernetes 中的 Minecraft 服务器的生命周期
type ServerController struct {
	// Kubernetes配置

	clientset            kubernetes.Interface // K8s客户端
	namespace            string               // 命名空间
	statefulSetName      string               // StatefulSet名称
	podLabelSelector     string               // Pod标签选择器
	serviceLabelSelector string               // 服务标签选择器
	containerName        string               // 容器名称
	gamePort             int                  // 游戏端口

	// 资源信息

	currentPodName string       // 当前选中的Pod名称
	serverIP       string       // 服务器IP地址
	status         ServerStatus // 最近一次的服务器状态

	// Pod信息更新控制

	lastPodInfoUpdate     time.Time     // 上次更新Pod信息的时间
	podInfoUpdateInterval time.Duration // Pod信息更新的最小间隔
	podInfoUpdateMutex    sync.Mutex    // 更新Pod信息时的互斥锁

	// 上下文控制

	ctx        context.Context    // 上下文
	cancelFunc context.CancelFunc // 取消函数
}

// NewKubernetesClient 根据运行模式创建K8s客户端
func NewKubernetesClient(config K8sConfig) (kubernetes.Interface, error) {
	var k8sConfig *rest.Config
	var err error

	if config.RunMode == "InCluster" {
		k8sConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("获取集群内部配置失败: %v", err)
		}
	} else {
		kubeconfigPath := config.KubeconfigPath
		if kubeconfigPath == "" {
			homeDir, _ := os.UserHomeDir()
			kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
		}

		k8sConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("加载kubeconfig失败: %v", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(k8sConfig)
	if err != nil {
		return nil, fmt.Errorf("创建K8s客户端失败: %v", err)
	}
	return clientset, nil
}

// NewServerController 创建服务器控制器，Pod 信息在首次使用时获取
func NewServerController(clientset kubernetes.Interface, config K8sConfig, gamePort int) *ServerController {
	ctx, cancel := context.WithCancel(context.Background())
	return &ServerController{
		clientset:             clientset,
		namespace:             config.Namespace,
		statefulSetName:       config.StatefulSetName,
		podLabelSelector:      config.PodLabelSelector,
		serviceLabelSelector:  config.ServiceLabelSelector,
		containerName:         config.ContainerName,
		gamePort:              gamePort,
		podInfoUpdateInterval: 5 * time.Minute,
		ctx:                   ctx,
		cancelFunc:            cancel,
	}
}

// Close 停止后台任务
func (m *ServerController) Close() {
	m.cancelFunc()
}

// SetPodInfoUpdateInterval 设置Pod信息更新的最小间隔
func (m *ServerController) SetPodInfoUpdateInterval(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	m.podInfoUpdateMutex.Lock()
	defer m.podInfoUpdateMutex.Unlock()
	m.podInfoUpdateInterval = interval
}

// ServerIP 返回当前Pod的IP，必要时刷新Pod信息
func (m *ServerController) ServerIP() (string, error) {
	if _, err := m.updatePodInfoIfNeeded(false); err != nil {
		return "", err
	}
	m.podInfoUpdateMutex.Lock()
	defer m.podInfoUpdateMutex.Unlock()
	return m.serverIP, nil
}

// PodName 返回当前选中的Pod名称
func (m *ServerController) PodName() (string, error) {
	if _, err := m.updatePodInfoIfNeeded(false); err != nil {
		return "", err
	}
	m.podInfoUpdateMutex.Lock()
	defer m.podInfoUpdateMutex.Unlock()
	return m.currentPodName, nil
}

// updatePodInfoIfNeeded 在必要时更新Pod信息
// 返回值: 是否执行了更新操作, 更新错误（如果有）
func (m *ServerController) updatePodInfoIfNeeded(forceUpdate bool) (bool, error) {
	m.podInfoUpdateMutex.Lock()
	defer m.podInfoUpdateMutex.Unlock()

	if !forceUpdate && m.currentPodName != "" && time.Since(m.lastPodInfoUpdate) < m.podInfoUpdateInterval {
		return false, nil
	}

	return true, m.findAndUpdatePodInfo()
}

// findAndUpdatePodInfo 查找符合标签的Pod并更新信息，调用方必须持有 podInfoUpdateMutex
func (m *ServerController) findAndUpdatePodInfo() error {
	pods, err := m.clientset.CoreV1().Pods(m.namespace).List(m.ctx, metav1.ListOptions{
		LabelSelector: m.podLabelSelector,
	})
	if err != nil {
		return fmt.Errorf("获取Pod列表失败: %v", err)
	}

	if len(pods.Items) == 0 {
		m.currentPodName = ""
		m.serverIP = ""
		return fmt.Errorf("%w: 标签 '%s'", ErrNoPod, m.podLabelSelector)
	}

	// 优先选择Running状态的Pod，其次是最近成功运行过的，最后选第一个
	var selectedPod *corev1.Pod
	var latestSucceededPod *corev1.Pod
	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.Status.Phase == corev1.PodRunning {
			selectedPod = pod
			break
		}
		if pod.Status.Phase == corev1.PodSucceeded && pod.Status.StartTime != nil {
			if latestSucceededPod == nil || pod.Status.StartTime.After(latestSucceededPod.Status.StartTime.Time) {
				latestSucceededPod = pod
			}
		}
	}
	if selectedPod == nil {
		selectedPod = latestSucceededPod
	}
	if selectedPod == nil {
		selectedPod = &pods.Items[0]
	}

	m.currentPodName = selectedPod.Name
	m.serverIP = selectedPod.Status.PodIP
	m.status.PodName = selectedPod.Name
	m.status.PodStatus = string(selectedPod.Status.Phase)
	m.status.ClusterIP = selectedPod.Status.PodIP
	m.status.ExternalIP = m.findExternalIP()

	m.lastPodInfoUpdate = time.Now()
	return nil
}

// findExternalIP 从 LoadBalancer 或 NodePort 服务中查找外部IP
func (m *ServerController) findExternalIP() string {
	selector := m.serviceLabelSelector
	if selector == "" {
		selector = m.podLabelSelector
	}

	services, err := m.clientset.CoreV1().Services(m.namespace).List(m.ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return ""
	}

	for _, service := range services.Items {
		if service.Spec.Type != corev1.ServiceTypeLoadBalancer && service.Spec.Type != corev1.ServiceTypeNodePort {
			continue
		}
		for _, port := range service.Spec.Ports {
			if port.Port != int32(m.gamePort) && port.TargetPort.IntVal != int32(m.gamePort) {
				continue
			}
			if len(service.Status.LoadBalancer.Ingress) > 0 {
				return service.Status.LoadBalancer.Ingress[0].IP
			}
			if len(service.Spec.ExternalIPs) > 0 {
				return service.Spec.ExternalIPs[0]
			}
		}
	}
	return ""
}

// CheckServerStatus 检查服务器状态，附带Pod信息
func (m *ServerController) CheckServerStatus() (*ServerStatus, error) {
	ip, err := m.ServerIP()
	if err != nil {
		return &ServerStatus{LastChecked: time.Now(), LastError: err.Error(), PlayerNames: []string{}}, err
	}

	status, err := Ping(ip, m.gamePort)
	if !status.Online {
		// Ping失败可能是Pod信息已过期，强制刷新后重试一次
		if updated, updateErr := m.updatePodInfoIfNeeded(true); updated && updateErr == nil {
			m.podInfoUpdateMutex.Lock()
			ip = m.serverIP
			m.podInfoUpdateMutex.Unlock()
			status, err = Ping(ip, m.gamePort)
		}
	}

	m.podInfoUpdateMutex.Lock()
	status.PodName = m.status.PodName
	status.PodStatus = m.status.PodStatus
	status.ClusterIP = m.status.ClusterIP
	status.ExternalIP = m.status.ExternalIP
	m.status = *status
	m.podInfoUpdateMutex.Unlock()

	return status, err
}

// Replicas 返回StatefulSet期望的副本数
func (m *ServerController) Replicas(ctx context.Context) (int32, error) {
	sts, err := m.clientset.AppsV1().StatefulSets(m.namespace).Get(ctx, m.statefulSetName, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("获取StatefulSet失败: %v", err)
	}
	if sts.Spec.Replicas == nil {
		return 1, nil
	}
	return *sts.Spec.Replicas, nil
}

// scale 修改StatefulSet的副本数
func (m *ServerController) scale(ctx context.Context, replicas int32) error {
	if m.statefulSetName == "" {
		return errors.New("未配置StatefulSet名称")
	}

	sts, err := m.clientset.AppsV1().StatefulSets(m.namespace).Get(ctx, m.statefulSetName, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("获取StatefulSet失败: %v", err)
	}
	if sts.Spec.Replicas != nil && *sts.Spec.Replicas == replicas {
		return nil
	}

	sts.Spec.Replicas = &replicas
	if _, err := m.clientset.AppsV1().StatefulSets(m.namespace).Update(ctx, sts, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("更新StatefulSet副本数失败: %v", err)
	}

	log.WithFields(log.Fields{"statefulset": m.statefulSetName, "replicas": replicas}).Info("已调整服务器副本数")
	return nil
}

// Start 启动服务器（副本数设为 1）
func (m *ServerController) Start(ctx context.Context) error {
	return m.scale(ctx, 1)
}

// Stop 停止服务器：先通过RCON保存世界并停服，再把副本数设为 0
// RCON 失败只记录日志，服务器可能已经不可达
func (m *ServerController) Stop(ctx context.Context, dispatcher *Dispatcher) error {
	if dispatcher != nil {
		if res := dispatcher.SaveAll(ctx, true); !res.Success {
			log.WithField("error_kind", res.ErrorKind).Warn("停服前保存世界失败")
		}
		if res := dispatcher.Stop(ctx); !res.Success {
			log.WithField("error_kind", res.ErrorKind).Warn("通过RCON停服失败")
		}
	}
	return m.scale(ctx, 0)
}

// Restart 删除当前Pod，由StatefulSet重新拉起
func (m *ServerController) Restart(ctx context.Context) error {
	podName, err := m.PodName()
	if err != nil {
		return err
	}
	if err := m.clientset.CoreV1().Pods(m.namespace).Delete(ctx, podName, metav1.DeleteOptions{}); err != nil {
		return fmt.Errorf("删除Pod失败: %v", err)
	}

	m.podInfoUpdateMutex.Lock()
	m.lastPodInfoUpdate = time.Time{}
	m.podInfoUpdateMutex.Unlock()

	log.WithField("pod", podName).Info("已删除服务器Pod，等待重建")
	return nil
}

// StartStatusMonitoring 定期检查服务器状态，回调收到每次的结果
func (m *ServerController) StartStatusMonitoring(interval time.Duration, callback func(*ServerStatus)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				status, _ := m.CheckServerStatus()
				if callback != nil {
					callback(status)
				}
			}
		}
	}()
}
