// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package media

// PacketKind is the message type a transport frames a payload as.
type PacketKind uint8

// Packet kinds understood by transports.
const (
	PacketAudio PacketKind = iota + 1
	PacketVideo
	PacketInfo
)

func (k PacketKind) String() string {
	switch k {
	case PacketAudio:
		return "audio"
	case PacketVideo:
		return "video"
	case PacketInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Channels audio, video and control messages are multiplexed on.
const (
	ChannelControl uint8 = 0x03
	ChannelVideo   uint8 = 0x04
	ChannelAudio   uint8 = 0x05
)

// Route returns the channel and packet kind a frame of kind k is sent with.
func Route(k FrameKind) (uint8, PacketKind) {
	if k == Audio {
		return ChannelAudio, PacketAudio
	}

	return ChannelVideo, PacketVideo
}
