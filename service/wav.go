package service

import "encoding/binary"

// 语音网关返回裸 PCM：24kHz 单声道 16bit。播放前必须包上 44 字节
// 标准 RIFF/WAVE 头，采样率/声道/位深/byte-rate/block-align 任何一项
// 不匹配都会导致无法播放
const (
	wavHeaderSize  = 44
	pcmChannels    = 1
	pcmBitsPerSamp = 16
)

// WrapPCM 在裸 PCM 前面拼上 WAV 头，返回可直接落盘/播放的完整字节
func WrapPCM(pcm []byte, sampleRate int) []byte {
	dataLen := len(pcm)
	blockAlign := pcmChannels * pcmBitsPerSamp / 8
	byteRate := sampleRate * blockAlign

	buf := make([]byte, wavHeaderSize+dataLen)

	// RIFF chunk（四字符码原样写入，其余字段小端）
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	// fmt chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk 固定 16 字节
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM 编码
	binary.LittleEndian.PutUint16(buf[22:24], pcmChannels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], pcmBitsPerSamp)

	// data chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[wavHeaderSize:], pcm)

	return buf
}
