package hierarchy

import (
	"path"
	"strconv"
	"strings"

	"github.com/spacedown/spacedown/internal/model"
)

// PlanAttachments decides the final on-disk filename for every attachment
// of a page. Names are sanitized with the same rule as directory segments
// and made unique within the page, keeping the extension intact so file
// type associations survive renaming ("photo.png" next to "Photo.PNG"
// becomes "photo.png" and "Photo_2.PNG").
//
// The plan is stored on the node. Content conversion and the downloader
// both read it, so inline references always match the files that end up on
// disk.
func PlanAttachments(n *model.Node, rep *model.ExportReport) {
	if len(n.Page.Attachments) == 0 {
		n.Attachments = nil
		return
	}

	taken := make(map[string]struct{}, len(n.Page.Attachments))
	planned := make([]model.PlannedAttachment, 0, len(n.Page.Attachments))
	for _, ref := range n.Page.Attachments {
		base := SanitizeSegment(ref.Filename)
		name := base
		for i := 2; ; i++ {
			if _, dup := taken[strings.ToLower(name)]; !dup {
				break
			}
			name = suffixFilename(base, i)
		}
		if name != base && rep != nil {
			rep.AddCollision(model.CollisionNote{
				Kind:      model.CollisionAttachment,
				PageID:    n.Page.ID,
				PageTitle: n.Page.Title,
				Requested: base,
				Assigned:  name,
			})
		}
		taken[strings.ToLower(name)] = struct{}{}
		planned = append(planned, model.PlannedAttachment{Ref: ref, Name: name})
	}
	n.Attachments = planned
}

// suffixFilename inserts "_<n>" before the extension so "report.pdf"
// becomes "report_2.pdf" rather than "report.pdf_2".
func suffixFilename(base string, n int) string {
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	suffix := "_" + strconv.Itoa(n)
	if len(stem)+len(suffix)+len(ext) > maxSegmentLen {
		cut := maxSegmentLen - len(suffix) - len(ext)
		if cut < 0 {
			cut = 0
		}
		stem = strings.TrimRight(stem[:cut], "._ ")
	}
	return stem + suffix + ext
}
