/*
Package rcon 实现了 Minecraft 服务器使用的 Source RCON 协议客户端。

线路格式（小端序）:

	int32(length) | int32(requestId) | int32(type) | payload | 0x00 0x00

其中 length 统计长度字段之后的所有字节。发送的数据包负载不超过 MaxPayloadSize（4096 字节）。
服务器的响应片段按字符切分，UTF-8 编码后可能更长，读取时放宽到 MaxPayloadSize 的四倍。

多包响应:

原版 RCON 没有响应结束标记，服务器可能把一条命令的输出拆成多个共享同一 requestId 的
RESPONSE_VALUE 包。Conn.Send 在命令包之后紧跟发送一个空的 COMMAND 探测包，探测包使用
独立的 requestId。服务器按顺序处理请求，因此收到探测包的回显即表示命令的输出已经全部到达，
此前收到的所有片段按到达顺序拼接即为完整输出。

Conn 本身只做单次尝试，不做任何重试；重连与排队策略由 mccontrol.SessionManager 负责。

基本用法:

	conn := rcon.NewConn(rcon.Config{
		Host:     "localhost",
		Port:     25575,
		Password: "secret",
		Timeout:  5 * time.Second,
	})
	if err := conn.Connect(ctx); err != nil {
		// rcon.KindOf(err) 给出稳定的错误类型
	}
	defer conn.Close()

	output, err := conn.Send(ctx, "list")
*/
package rcon
