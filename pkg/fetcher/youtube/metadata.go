package youtube

import (
	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"

	"github.com/ValerySidorin/ytgrab/pkg/job"
)

const uploadDateLayout = "20060102"

func toMetadata(v *youtube.Video) *job.Metadata {
	md := &job.Metadata{
		Title:       v.Title,
		Description: v.Description,
		Duration:    int(v.Duration.Seconds()),
		Uploader:    v.Author,
		ViewCount:   v.Views,
	}

	if len(v.Thumbnails) > 0 {
		md.Thumbnail = lo.MaxBy(v.Thumbnails, func(a, b youtube.Thumbnail) bool {
			return a.Width*a.Height > b.Width*b.Height
		}).URL
	}
	if !v.PublishDate.IsZero() {
		md.UploadDate = v.PublishDate.Format(uploadDateLayout)
	}

	return md
}
