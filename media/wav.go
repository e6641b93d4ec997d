// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV 文件不是有效的 WAV
var ErrInvalidWAV = errors.New("media: invalid wav file")

// wavLead 源提前入列的时长
const wavLead = 10 * time.Millisecond

// WAVSource 从 WAV 文件读取 PCM 的 Source，按帧间隔设置呈现时间
type WAVSource struct {
	file     *os.File
	dec      *wav.Decoder
	format   aem.AAFFormat
	size     int
	payload  int
	interval time.Duration
	loop     bool
	next     time.Time
	now      func() time.Time
	buf      *audio.IntBuffer
}

// OpenWAVSource 打开 WAV 文件，文件的采样率、声道数和位深必须与 m 的格式一致
func OpenWAVSource(path string, m *AAF, loop bool) (*WAVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	f := m.Format()
	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	if int(dec.SampleRate) != f.Nsr.Rate() || int(dec.NumChans) != int(f.ChannelsPerFrame) ||
		int(dec.BitDepth) != m.sampleSize*8 {
		file.Close()
		return nil, fmt.Errorf("%w: %s is %d Hz, %d channels, %d bits", ErrUnsupportedFormat,
			path, dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if err = dec.FwdToPCM(); err != nil {
		file.Close()
		return nil, err
	}

	return &WAVSource{
		file:     file,
		dec:      dec,
		format:   f,
		size:     m.sampleSize,
		payload:  m.PayloadSize(),
		interval: m.FrameInterval(),
		loop:     loop,
		now:      m.now,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: int(f.ChannelsPerFrame),
				SampleRate:  f.Nsr.Rate(),
			},
			Data:           make([]int, int(f.SamplesPerFrame)*int(f.ChannelsPerFrame)),
			SourceBitDepth: m.sampleSize * 8,
		},
	}, nil
}

// TxCB 把未来 wavLead 之内的帧放入队列
func (s *WAVSource) TxCB(q *Queue) error {
	now := s.now()
	if s.next.Before(now) {
		s.next = now
	}

	limit := now.Add(wavLead)
	for q.Len() < q.Cap() && s.next.Before(limit) {
		n, err := s.read()
		if err != nil {
			return err
		}

		data := make([]byte, s.payload)
		PutSamples(data, s.buf.Data[:n], s.size)
		q.Push(&Item{Data: data, Time: s.next})
		s.next = s.next.Add(s.interval)
	}
	return nil
}

// read 读取一帧采样，循环播放时到文件尾部重新开始
func (s *WAVSource) read() (int, error) {
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		return 0, err
	}
	if n > 0 {
		return n, nil
	}
	if !s.loop {
		return 0, io.EOF
	}

	if err = s.dec.Rewind(); err != nil {
		return 0, err
	}
	if err = s.dec.FwdToPCM(); err != nil {
		return 0, err
	}
	if n, err = s.dec.PCMBuffer(s.buf); err != nil && err != io.EOF {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close 关闭文件
func (s *WAVSource) Close() error {
	return s.file.Close()
}

// WAVRecorder 将收到的 PCM 写入 WAV 文件的 Sink
type WAVRecorder struct {
	file *os.File
	enc  *wav.Encoder
	size int
	now  func() time.Time
	buf  *audio.IntBuffer
}

// CreateWAVRecorder 创建 WAV 文件
func CreateWAVRecorder(path string, m *AAF) (*WAVRecorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	f := m.Format()
	return &WAVRecorder{
		file: file,
		enc:  wav.NewEncoder(file, f.Nsr.Rate(), m.sampleSize*8, int(f.ChannelsPerFrame), 1),
		size: m.sampleSize,
		now:  m.now,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: int(f.ChannelsPerFrame),
				SampleRate:  f.Nsr.Rate(),
			},
			SourceBitDepth: m.sampleSize * 8,
		},
	}, nil
}

// RxCB 写入所有到期的单元
func (r *WAVRecorder) RxCB(q *Queue) error {
	now := r.now()
	for it := q.PopDue(now); it != nil; it = q.PopDue(now) {
		r.buf.Data = Samples(it.Data, r.size, r.buf.Data[:0])
		if err := r.enc.Write(r.buf); err != nil {
			return err
		}
	}
	return nil
}

// Close 写入文件头并关闭
func (r *WAVRecorder) Close() error {
	err := r.enc.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
