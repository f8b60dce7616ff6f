package youtube

import (
	"testing"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFormat(t *testing.T) {
	var (
		p360    = youtube.Format{ItagNo: 18, MimeType: mp4Mime, Height: 360, AudioChannels: 2, Bitrate: 500}
		p720    = youtube.Format{ItagNo: 22, MimeType: mp4Mime, Height: 720, AudioChannels: 2, Bitrate: 1500}
		p720hi  = youtube.Format{ItagNo: 95, MimeType: mp4Mime, Height: 720, AudioChannels: 2, Bitrate: 2500}
		p1080   = youtube.Format{ItagNo: 37, MimeType: mp4Mime, Height: 1080, AudioChannels: 2}
		video4k = youtube.Format{ItagNo: 313, MimeType: `video/webm; codecs="vp9"`, Height: 2160}
		audio   = youtube.Format{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioChannels: 2}
	)

	tests := []struct {
		name      string
		formats   youtube.FormatList
		maxHeight int
		wantItag  int
		wantErr   bool
	}{
		{name: "best under limit", formats: youtube.FormatList{p360, p720, p1080}, maxHeight: 720, wantItag: 22},
		{name: "bitrate breaks ties", formats: youtube.FormatList{p720, p720hi, p360}, maxHeight: 720, wantItag: 95},
		{name: "adaptive streams ignored", formats: youtube.FormatList{video4k, audio, p360}, maxHeight: 2160, wantItag: 18},
		{name: "smallest when nothing fits", formats: youtube.FormatList{p1080, p720}, maxHeight: 480, wantItag: 22},
		{name: "no limit", formats: youtube.FormatList{p360, p1080}, maxHeight: 0, wantItag: 37},
		{name: "no progressive", formats: youtube.FormatList{video4k, audio}, maxHeight: 720, wantErr: true},
		{name: "empty", formats: nil, maxHeight: 720, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := selectFormat(tc.formats, tc.maxHeight)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantItag, f.ItagNo)
		})
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		title, id, mime, want string
	}{
		{title: "Plain title", id: "dQw4w9WgXcQ", mime: mp4Mime, want: "Plain title.mp4"},
		{title: `a/b\c:d*e?f"g<h>i|j`, id: "dQw4w9WgXcQ", mime: mp4Mime, want: "a_b_c_d_e_f_g_h_i_j.mp4"},
		{title: "  ..  ", id: "dQw4w9WgXcQ", mime: `video/webm; codecs="vp8.0, vorbis"`, want: "dQw4w9WgXcQ.webm"},
		{title: "clip", id: "x", mime: "video/3gpp", want: "clip.3gp"},
		{title: "clip", id: "x", mime: "", want: "clip.mp4"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, fileName(tc.title, tc.id, tc.mime), tc.title)
	}
}

func TestRunningPercent(t *testing.T) {
	assert.Equal(t, 0.0, runningPercent(-1))
	assert.Equal(t, 50.0, runningPercent(0.5))
	assert.Equal(t, maxRunningPercent, runningPercent(1))
}
