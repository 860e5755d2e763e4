package mccontrol

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/xrjr/mcutils/pkg/ping"
)

// pingFunc 便于测试替换
var pingFunc = func(host string, port int) (map[string]interface{}, int, error) {
	properties, latency, err := ping.Ping(host, port)
	return properties, int(latency), err
}

// Ping 通过 Server List Ping 查询服务器状态
// 服务器离线不算错误，体现在 Online 与 LastError 字段中
func Ping(host string, port int) (*ServerStatus, error) {
	status := &ServerStatus{LastChecked: time.Now(), PlayerNames: []string{}}

	properties, latency, err := pingFunc(host, port)
	if err != nil {
		status.LastError = fmt.Sprintf("Ping服务器失败: %v", err)
		return status, nil
	}

	status.Online = true
	status.Latency = latency
	if err := fillStatus(status, properties); err != nil {
		status.LastError = err.Error()
		return status, err
	}
	return status, nil
}

// fillStatus 使用 sonic 把 Ping 返回的属性解析为结构体
func fillStatus(status *ServerStatus, properties map[string]interface{}) error {
	jsonData, err := sonic.Marshal(properties)
	if err != nil {
		return fmt.Errorf("序列化服务器属性失败: %v", err)
	}

	var mcStatus MinecraftStatus
	if err := sonic.Unmarshal(jsonData, &mcStatus); err != nil {
		return fmt.Errorf("解析服务器状态失败: %v", err)
	}

	status.Version = mcStatus.Version.Name
	status.Players = mcStatus.Players.Online
	status.MaxPlayers = mcStatus.Players.Max
	status.Description = StripColorCodes(mcStatus.GetDescriptionText())
	for _, p := range mcStatus.Players.Sample {
		status.PlayerNames = append(status.PlayerNames, p.Name)
	}
	return nil
}
