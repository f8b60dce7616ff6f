package youtube

import (
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ValerySidorin/ytgrab/pkg/job"
)

// selectFormat picks the best progressive (audio and video) format not
// taller than maxHeight. When every progressive format is taller, the
// smallest one is used.
func selectFormat(formats youtube.FormatList, maxHeight int) (*youtube.Format, error) {
	progressive := lo.Filter(formats, func(f youtube.Format, _ int) bool {
		return f.AudioChannels > 0 && f.Height > 0 && strings.HasPrefix(f.MimeType, "video/")
	})
	if len(progressive) == 0 {
		return nil, errors.Wrap(job.ErrTransfer, "no progressive format available")
	}

	fitting := lo.Filter(progressive, func(f youtube.Format, _ int) bool {
		return maxHeight <= 0 || f.Height <= maxHeight
	})

	var best youtube.Format
	if len(fitting) > 0 {
		best = lo.MaxBy(fitting, func(a, b youtube.Format) bool {
			if a.Height != b.Height {
				return a.Height > b.Height
			}
			return a.Bitrate > b.Bitrate
		})
	} else {
		best = lo.MinBy(progressive, func(a, b youtube.Format) bool {
			return a.Height < b.Height
		})
	}

	return &best, nil
}

// extension maps a container mime type such as
// `video/mp4; codecs="avc1.42001E, mp4a.40.2"` to a file extension.
func extension(mimeType string) string {
	base := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	_, sub, found := strings.Cut(base, "/")
	if !found || sub == "" {
		return "mp4"
	}

	switch sub {
	case "3gpp":
		return "3gp"
	case "x-flv":
		return "flv"
	}
	return sub
}

const maxTitleLength = 200

// fileName renders the title.ext naming scheme. Characters that are unsafe
// in file names are replaced. Titles are not deduplicated.
func fileName(title, videoID, mimeType string) string {
	name := strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, title)
	name = strings.Trim(strings.TrimSpace(name), ".")

	if name == "" {
		name = videoID
	}
	if r := []rune(name); len(r) > maxTitleLength {
		name = string(r[:maxTitleLength])
	}

	return name + "." + extension(mimeType)
}
