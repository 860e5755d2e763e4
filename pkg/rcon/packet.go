package rcon

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PacketType 数据包类型
type PacketType int32

const (
	TypeCommandResponse PacketType = 0 // SERVERDATA_RESPONSE_VALUE
	TypeCommand         PacketType = 2 // SERVERDATA_EXECCOMMAND
	TypeAuthResponse    PacketType = 2 // SERVERDATA_AUTH_RESPONSE，与 TypeCommand 数值相同
	TypeAuth            PacketType = 3 // SERVERDATA_AUTH
)

const (
	// MaxPayloadSize 单个数据包负载的最大字节数
	MaxPayloadSize = 4096

	// maxResponsePayload 接收方向的负载上限。服务器按 4096 个字符切分输出后再做
	// UTF-8 编码，带颜色代码或中文的片段会超过 MaxPayloadSize 字节
	maxResponsePayload = MaxPayloadSize * 4

	headerSize      = 8              // requestId + type
	minPacketLength = headerSize + 2 // 空负载加两个结尾空字节
	maxPacketLength = maxResponsePayload + minPacketLength
)

// Packet 表示一个 RCON 数据包，长度字段在编码时计算
type Packet struct {
	RequestID int32      // 请求ID，服务器回显
	Type      PacketType // 包类型
	Payload   string     // 负载（UTF-8）
}

// Encode 将数据包编码为线路格式
func Encode(p Packet) ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d 字节，上限 %d", ErrPayloadTooLarge, len(p.Payload), MaxPayloadSize)
	}

	length := headerSize + len(p.Payload) + 2
	buf := make([]byte, 4+length)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(length))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.RequestID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Type))
	copy(buf[12:], p.Payload)
	// 最后两个字节保持为 0x00

	return buf, nil
}

// Decode 从完整的一帧字节中解码数据包，负载上限为 MaxPayloadSize 的四倍
func Decode(b []byte) (Packet, error) {
	if len(b) < 4 {
		return Packet{}, fmt.Errorf("%w: 帧长度不足 %d 字节", ErrMalformedFrame, len(b))
	}

	length := int32(binary.LittleEndian.Uint32(b[0:4]))
	if length < minPacketLength || length > maxPacketLength {
		return Packet{}, fmt.Errorf("%w: 声明长度 %d 超出范围", ErrMalformedFrame, length)
	}
	if int(length) != len(b)-4 {
		return Packet{}, fmt.Errorf("%w: 声明长度 %d，实际 %d", ErrMalformedFrame, length, len(b)-4)
	}
	if b[len(b)-2] != 0 || b[len(b)-1] != 0 {
		return Packet{}, fmt.Errorf("%w: 缺少结尾空字节", ErrMalformedFrame)
	}

	return Packet{
		RequestID: int32(binary.LittleEndian.Uint32(b[4:8])),
		Type:      PacketType(binary.LittleEndian.Uint32(b[8:12])),
		Payload:   string(b[12 : len(b)-2]),
	}, nil
}

// WritePacket 编码并写出一个数据包
func WritePacket(w io.Writer, p Packet) error {
	buf, err := Encode(p)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadPacket 从流中读取一个完整的数据包
// 底层读取错误原样返回，帧格式错误返回 ErrMalformedFrame
func ReadPacket(r io.Reader) (Packet, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Packet{}, err
	}

	length := int32(binary.LittleEndian.Uint32(head[:]))
	if length < minPacketLength || length > maxPacketLength {
		return Packet{}, fmt.Errorf("%w: 声明长度 %d 超出范围", ErrMalformedFrame, length)
	}

	frame := make([]byte, 4+int(length))
	copy(frame, head[:])
	if _, err := io.ReadFull(r, frame[4:]); err != nil {
		return Packet{}, err
	}

	return Decode(frame)
}
