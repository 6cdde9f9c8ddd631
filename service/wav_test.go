package service

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWrapPCMHeaderFields(t *testing.T) {
	pcm := make([]byte, 4800) // 0.1s @ 24kHz mono 16bit
	wav := WrapPCM(pcm, 24000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(wav))
	}

	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad RIFF/WAVE markers: %q %q", wav[0:4], wav[8:12])
	}
	if string(wav[12:16]) != "fmt " || string(wav[36:40]) != "data" {
		t.Fatalf("bad chunk markers: %q %q", wav[12:16], wav[36:40])
	}

	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("riff length = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint32(wav[16:20]); got != 16 {
		t.Errorf("fmt chunk size = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Errorf("sample rate = %d, want 24000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 48000 {
		t.Errorf("byte rate = %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data length = %d, want %d", got, len(pcm))
	}
}

func TestWrapPCMPreservesPayload(t *testing.T) {
	pcm := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	wav := WrapPCM(pcm, 24000)
	if !bytes.Equal(wav[44:], pcm) {
		t.Fatalf("payload corrupted: %x", wav[44:])
	}
}

func TestWrapPCMEmptyPayload(t *testing.T) {
	wav := WrapPCM(nil, 24000)
	if len(wav) != 44 {
		t.Fatalf("expected bare 44-byte header, got %d bytes", len(wav))
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 0 {
		t.Errorf("data length = %d, want 0", got)
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != 36 {
		t.Errorf("riff length = %d, want 36", got)
	}
}
