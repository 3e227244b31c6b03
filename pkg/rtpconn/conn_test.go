// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package rtpconn

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pion/publisher/internal/ntp"
	"github.com/pion/publisher/internal/test"
	"github.com/pion/publisher/pkg/media"
	"github.com/pion/publisher/pkg/sendbuf"
	"github.com/pion/rtcp"
	transporttest "github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func readAll(t *testing.T, b []byte) []Frame {
	t.Helper()

	r := NewReader(bytes.NewReader(b))
	var frames []Frame
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

func TestConnPacketizesMedia(t *testing.T) {
	sock := test.NewMockSocket(0)
	conn, err := NewConn(sock, WithMTU(rtpHeaderSize+100))
	require.NoError(t, err)

	body := make([]byte, 250)
	for i := range body {
		body[i] = byte(i)
	}
	require.NoError(t, conn.SendFramedPacket(media.ChannelVideo, media.PacketVideo, 1000, body))
	require.NoError(t, conn.SendFramedPacket(media.ChannelAudio, media.PacketAudio, 20, []byte{1, 2, 3}))
	assert.Len(t, sock.Writes(), 2, "one socket write per frame")

	frames := readAll(t, sock.Bytes())
	require.Len(t, frames, 4)

	var payload []byte
	for i, f := range frames[:3] {
		require.NotNil(t, f.RTP)
		assert.Equal(t, uint8(VideoPayloadType), f.RTP.PayloadType)
		assert.Equal(t, uint32(90000), f.RTP.Timestamp)
		assert.Equal(t, frames[0].RTP.SSRC, f.RTP.SSRC)
		assert.Equal(t, frames[0].RTP.SequenceNumber+uint16(i), f.RTP.SequenceNumber) //nolint:gosec
		assert.Equal(t, i == 2, f.RTP.Marker)
		payload = append(payload, f.RTP.Payload...)
	}
	assert.Equal(t, body, payload)
	assert.Len(t, frames[2].RTP.Payload, 50)

	audio := frames[3].RTP
	require.NotNil(t, audio)
	assert.Equal(t, uint8(AudioPayloadType), audio.PayloadType)
	assert.Equal(t, uint32(960), audio.Timestamp)
	assert.True(t, audio.Marker)
	assert.Equal(t, []byte{1, 2, 3}, audio.Payload)
	assert.NotEqual(t, frames[0].RTP.SSRC, audio.SSRC)
}

func TestConnEmptyFrame(t *testing.T) {
	sock := test.NewMockSocket(0)
	conn, err := NewConn(sock)
	require.NoError(t, err)

	require.NoError(t, conn.SendFramedPacket(media.ChannelVideo, media.PacketVideo, 0, nil))
	frames := readAll(t, sock.Bytes())
	require.Len(t, frames, 1)
	assert.True(t, frames[0].RTP.Marker)
	assert.Empty(t, frames[0].RTP.Payload)
}

func TestConnMetadata(t *testing.T) {
	sock := test.NewMockSocket(0)
	conn, err := NewConn(sock, WithStreamID("live"))
	require.NoError(t, err)

	require.NoError(t, conn.SendFramedPacket(media.ChannelControl, media.PacketInfo, 0, []byte("abcd")))

	frames := readAll(t, sock.Bytes())
	require.Len(t, frames, 1)
	require.Len(t, frames[0].RTCP, 2)

	app, ok := frames[0].RTCP[0].(*rtcp.ApplicationDefined)
	require.True(t, ok)
	assert.Equal(t, metadataName, app.Name)
	assert.Equal(t, []byte("abcd"), app.Data)

	sdes, ok := frames[0].RTCP[1].(*rtcp.SourceDescription)
	require.True(t, ok)
	require.Len(t, sdes.Chunks, 1)
	assert.Equal(t, app.SSRC, sdes.Chunks[0].Source)
	assert.Equal(t, "live", sdes.Chunks[0].Items[0].Text)
}

func TestConnUnknownChannel(t *testing.T) {
	conn, err := NewConn(test.NewMockSocket(0))
	require.NoError(t, err)

	assert.ErrorIs(t, conn.SendFramedPacket(0x09, media.PacketVideo, 0, []byte{1}), errUnknownChannel)
	assert.True(t, conn.IsConnected())
}

func TestConnSendBuffering(t *testing.T) {
	sock := test.NewMockSocket(0)
	conn, err := NewConn(sock, WithSendBuffering(sendbuf.MinSize))
	require.NoError(t, err)
	require.NotNil(t, conn.SendBuffer())
	assert.Equal(t, sendbuf.MinSize, conn.SendBuffer().Size())

	require.NoError(t, conn.SendFramedPacket(media.ChannelAudio, media.PacketAudio, 0, make([]byte, 100)))
	assert.Empty(t, sock.Writes())

	require.NoError(t, conn.Flush())
	require.Len(t, sock.Writes(), 1)
	assert.Len(t, readAll(t, sock.Bytes()), 1)

	unbuffered, err := NewConn(test.NewMockSocket(0))
	require.NoError(t, err)
	assert.Nil(t, unbuffered.SendBuffer())
	assert.NoError(t, unbuffered.Flush())
}

func TestConnWriteFailureDisconnects(t *testing.T) {
	sock := test.NewMockSocket(0)
	conn, err := NewConn(sock)
	require.NoError(t, err)

	sock.FailNext(errBoom)
	assert.ErrorIs(t, conn.SendFramedPacket(media.ChannelVideo, media.PacketVideo, 0, []byte{1}), errBoom)
	assert.False(t, conn.IsConnected())
	assert.ErrorIs(t, conn.SendFramedPacket(media.ChannelVideo, media.PacketVideo, 33, []byte{1}), ErrNotConnected)

	require.NoError(t, conn.Close())
	assert.Empty(t, sock.Writes(), "no goodbye on a dead connection")
	assert.True(t, sock.Closed())
}

func TestConnFlushFailureDisconnects(t *testing.T) {
	sock := test.NewMockSocket(0)
	conn, err := NewConn(sock, WithSendBuffering(0))
	require.NoError(t, err)

	require.NoError(t, conn.SendFramedPacket(media.ChannelAudio, media.PacketAudio, 0, []byte{1}))
	sock.FailNext(errBoom)
	assert.ErrorIs(t, conn.Flush(), sendbuf.ErrWriteFailed)
	assert.False(t, conn.IsConnected())
}

func TestConnCloseSendsGoodbye(t *testing.T) {
	sock := test.NewMockSocket(0)
	conn, err := NewConn(sock, WithSendBuffering(0))
	require.NoError(t, err)

	require.NoError(t, conn.SendFramedPacket(media.ChannelAudio, media.PacketAudio, 0, []byte{1}))
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsConnected())
	assert.True(t, sock.Closed())

	frames := readAll(t, sock.Bytes())
	require.Len(t, frames, 2)
	require.Len(t, frames[1].RTCP, 2, "only the audio stream sent anything")

	sr, ok := frames[1].RTCP[0].(*rtcp.SenderReport)
	require.True(t, ok)
	assert.Equal(t, frames[0].RTP.SSRC, sr.SSRC)
	assert.Equal(t, uint32(1), sr.PacketCount)
	assert.Equal(t, uint32(1), sr.OctetCount)
	assert.WithinDuration(t, time.Now(), ntp.ToTime(sr.NTPTime), time.Minute)

	bye, ok := frames[1].RTCP[1].(*rtcp.Goodbye)
	require.True(t, ok)
	assert.Len(t, bye.Sources, 3)
	assert.Contains(t, bye.Sources, frames[0].RTP.SSRC)

	assert.ErrorIs(t, conn.SendFramedPacket(media.ChannelAudio, media.PacketAudio, 20, []byte{1}), ErrNotConnected)
}

func TestConnAbortReleasesStalledSend(t *testing.T) {
	defer transporttest.CheckRoutines(t)()

	sock := test.NewStalledSocket()
	conn, err := NewConn(sock)
	require.NoError(t, err)

	sent := make(chan error, 1)
	go func() {
		sent <- conn.SendFramedPacket(media.ChannelVideo, media.PacketVideo, 0, []byte{1})
	}()
	<-sock.Blocked()

	require.NoError(t, conn.Abort())
	select {
	case err = <-sent:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(time.Second):
		require.FailNow(t, "send still blocked after Abort")
	}
	assert.False(t, conn.IsConnected())
	assert.NoError(t, conn.Close())
}

func TestOptionValidation(t *testing.T) {
	_, err := NewConn(test.NewMockSocket(0), WithMTU(rtpHeaderSize))
	assert.ErrorIs(t, err, errInvalidMTU)

	_, err = NewConn(test.NewMockSocket(0), WithMTU(maxFrameSize+1))
	assert.ErrorIs(t, err, errInvalidMTU)

	_, err = NewConn(test.NewMockSocket(0), WithClockRates(0, 48000))
	assert.ErrorIs(t, err, errInvalidClockRate)

	conn, err := NewConn(test.NewMockSocket(0), WithSendBuffering(1<<20))
	require.NoError(t, err)
	assert.Equal(t, sendbuf.MaxSize, conn.SendBuffer().Size())
}

func TestDial(t *testing.T) {
	defer transporttest.CheckRoutines(t)()
	lim := transporttest.TimeOut(5 * time.Second)
	defer lim.Stop()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	received := make(chan []Frame, 1)
	go func() {
		sock, acceptErr := listener.Accept()
		if acceptErr != nil {
			close(received)

			return
		}
		defer func() { _ = sock.Close() }()

		var frames []Frame
		r := NewReader(sock)
		for {
			f, readErr := r.Next()
			if readErr != nil {
				break
			}
			frames = append(frames, f)
		}
		received <- frames
	}()

	conn, err := Dial(context.Background(), listener.Addr().String())
	require.NoError(t, err)
	require.NoError(t, conn.SendFramedPacket(media.ChannelAudio, media.PacketAudio, 0, []byte{1, 2}))
	require.NoError(t, conn.Close())

	frames := <-received
	require.Len(t, frames, 2)
	assert.Equal(t, []byte{1, 2}, frames[0].RTP.Payload)
	require.Len(t, frames[1].RTCP, 2)
	_, ok := frames[1].RTCP[1].(*rtcp.Goodbye)
	assert.True(t, ok)
}
