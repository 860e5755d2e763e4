/*
Package mccontrol 提供了控制 Minecraft 服务器的功能。

主要特性:

  - 会话管理：SessionManager 为每个 RCON 端点维护一个懒连接的会话，命令按 FIFO 串行执行，
    连接中断或超时时自动重连并重试一次
  - 命令分发：Dispatcher 把踢人、封禁、白名单、天气等领域动作翻译为 Minecraft 命令，
    校验参数并解析 list、whitelist list 等命令的输出
  - 服务器状态：通过 Server List Ping 获取在线人数、版本和描述
  - 生命周期：ServerController 通过 Kubernetes 启停和重启服务器，并获取日志

此包的 RCON 协议实现位于 city.newnan/mcbot/pkg/rcon。

基本用法:

	session := mccontrol.NewSessionManager(rcon.Config{
		Host:     "localhost",
		Port:     25575,
		Password: "minecraft-password",
		Timeout:  5 * time.Second,
	})
	defer session.Close()

	dispatcher := mccontrol.NewDispatcher(session)

	// 踢出玩家，实际发送 "kick Griefer spam"
	result := dispatcher.KickPlayer(ctx, "Griefer", "spam")
	if !result.Success {
		// result.ErrorKind 为稳定的错误类型，如 TIMEOUT、AUTH_FAILED
	}

	// 在线玩家
	players := dispatcher.ListPlayers(ctx)
	fmt.Println(players.Players.Online, players.Players.Names)
*/
package mccontrol
