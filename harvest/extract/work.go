package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/theimaginaryfoundation/novel-harvest/harvest"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/fileutils"
	"go.uber.org/zap"
)

const workPage = "work"

const (
	selTitle        = "section#work-information > header > h4"
	selAuthor       = "section#work-information > header > h5 > a"
	selStars        = "p#workPoints > a > span"
	selCatchphrase  = "span#catchphrase-body"
	selIntroduction = "p#introduction"
	selExpandButton = "span.ui-truncateTextButton-expandButton > span"
	selTOCItems     = "div.widget-toc-main > ol > li"
	selInfoLists    = "div#workInformationList > dl"
)

// Information block labels.
const (
	labelStatus      = "執筆状況"
	labelEpisodes    = "エピソード"
	labelType        = "種類"
	labelGenre       = "ジャンル"
	labelSelfRating  = "セルフレイティング"
	labelTags        = "タグ"
	labelCharacters  = "総文字数"
	labelPublishedAt = "公開日"
	labelUpdatedAt   = "最終更新日"
	labelReviews     = "おすすめレビュー"
	labelComments    = "応援コメント"
	labelFollows     = "小説フォロー数"
	labelDerivative  = "二次創作原作"
	labelCollection  = "コレクション"
)

// WorkPage extracts metadata, information block and table of contents from a work page.
type WorkPage struct {
	Log *zap.Logger
}

func (p WorkPage) log() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func (p WorkPage) ExtractWork(doc *goquery.Document) (harvest.ShallowMetadata, error) {
	if doc == nil {
		return harvest.ShallowMetadata{}, missing(workPage, "document")
	}

	title := doc.Find(selTitle).First()
	if title.Length() == 0 {
		return harvest.ShallowMetadata{}, missing(workPage, "title")
	}

	authorName, authorID, err := p.author(doc)
	if err != nil {
		return harvest.ShallowMetadata{}, err
	}

	starsSel := doc.Find(selStars).First()
	if starsSel.Length() == 0 {
		return harvest.ShallowMetadata{}, missing(workPage, "stars")
	}
	stars, err := ParseInt(text(starsSel))
	if err != nil {
		return harvest.ShallowMetadata{}, invalid(workPage, "stars", "%v", err)
	}

	info, err := p.info(doc)
	if err != nil {
		return harvest.ShallowMetadata{}, err
	}

	chapters, err := p.chapters(doc)
	if err != nil {
		return harvest.ShallowMetadata{}, err
	}

	return harvest.ShallowMetadata{
		Title:        text(title),
		AuthorName:   authorName,
		AuthorID:     authorID,
		Stars:        stars,
		Catchphrase:  p.catchphrase(doc),
		Introduction: p.introduction(doc),
		Info:         info,
		Chapters:     chapters,
	}, nil
}

// author falls back to the screen name when the display name is absent.
func (p WorkPage) author(doc *goquery.Document) (name, id string, err error) {
	a := doc.Find(selAuthor).First()
	if a.Length() == 0 {
		return "", "", missing(workPage, "author")
	}
	screen := a.Find("span.screenName").First()
	if screen.Length() == 0 {
		return "", "", missing(workPage, "author.screen_name")
	}
	id = strings.TrimPrefix(text(screen), "@")
	if id == "" {
		return "", "", invalid(workPage, "author.screen_name", "empty")
	}
	activity := a.Find("span.activityName").First()
	if activity.Length() == 0 || text(activity) == "" {
		p.log().Debug("author display name missing, using screen name", zap.String("author_id", id))
		return id, id, nil
	}
	return text(activity), id, nil
}

func (p WorkPage) catchphrase(doc *goquery.Document) *string {
	s := doc.Find(selCatchphrase).First()
	if s.Length() == 0 {
		p.log().Debug("catchphrase not found")
		return nil
	}
	v := text(s)
	return &v
}

// introduction drops the trailing "read more" button label the page appends to long blurbs.
func (p WorkPage) introduction(doc *goquery.Document) *string {
	s := doc.Find(selIntroduction).First()
	if s.Length() == 0 {
		p.log().Debug("introduction not found")
		return nil
	}
	v := text(s)
	if btn := s.Find(selExpandButton).First(); btn.Length() > 0 {
		v = strings.TrimSpace(strings.TrimSuffix(v, text(btn)))
	}
	return &v
}

// chapters walks the table of contents. Episodes listed before the first chapter heading belong
// to an untitled leading chapter; a heading seen while that chapter is still empty names it.
func (p WorkPage) chapters(doc *goquery.Document) ([]harvest.ChapterIndex, error) {
	chapters := []harvest.ChapterIndex{{Title: nil, Episodes: []harvest.EpisodeStub{}}}

	var err error
	doc.Find(selTOCItems).EachWithBreak(func(i int, li *goquery.Selection) bool {
		switch {
		case li.HasClass("widget-toc-episode"):
			var ep harvest.EpisodeStub
			ep, err = tocEpisode(li)
			if err != nil {
				return false
			}
			last := &chapters[len(chapters)-1]
			last.Episodes = append(last.Episodes, ep)
		case li.HasClass("widget-toc-chapter"):
			title := text(li)
			if len(chapters) == 1 && len(chapters[0].Episodes) == 0 {
				chapters[0].Title = &title
			} else {
				chapters = append(chapters, harvest.ChapterIndex{Title: &title, Episodes: []harvest.EpisodeStub{}})
			}
		default:
			class, _ := li.Attr("class")
			err = invalid(workPage, "toc.item", "unexpected class %q at position %d", class, i)
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return chapters, nil
}

func tocEpisode(li *goquery.Selection) (harvest.EpisodeStub, error) {
	link := li.Find("a").First()
	href, ok := attr(link, "href")
	if !ok || href == "" {
		return harvest.EpisodeStub{}, missing(workPage, "toc.episode.href")
	}
	label := link.Find("span").First()
	if label.Length() == 0 {
		return harvest.EpisodeStub{}, missing(workPage, "toc.episode.title")
	}
	published, ok := attr(link.Find("time"), "datetime")
	if !ok {
		return harvest.EpisodeStub{}, missing(workPage, "toc.episode.published_at")
	}
	return harvest.EpisodeStub{
		ID:          ParseEpisodeID(href),
		Title:       text(label),
		PublishedAt: published,
	}, nil
}

func (p WorkPage) info(doc *goquery.Document) (harvest.WorkInfo, error) {
	lists := doc.Find(selInfoLists)
	if lists.Length() == 0 {
		return harvest.WorkInfo{}, missing(workPage, "information")
	}

	info := harvest.WorkInfo{
		SelfRatings: []string{},
		Tags:        []string{},
	}
	zero := 0
	info.NumberOfComments = &zero

	var err error
	lists.EachWithBreak(func(_ int, dl *goquery.Selection) bool {
		dts := dl.Find("dt")
		dds := dl.Find("dd")
		if dts.Length() != dds.Length() {
			err = invalid(workPage, "information", "%d labels but %d values", dts.Length(), dds.Length())
			return false
		}
		for i := 0; i < dts.Length(); i++ {
			if err = p.infoEntry(&info, text(dts.Eq(i)), dds.Eq(i)); err != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return harvest.WorkInfo{}, err
	}
	return info, nil
}

func (p WorkPage) infoEntry(info *harvest.WorkInfo, label string, dd *goquery.Selection) error {
	value := text(dd)
	var err error
	switch label {
	case labelStatus:
		switch value {
		case "完結済":
			info.IsEnded = true
		case "連載中":
			info.IsEnded = false
		default:
			return invalid(workPage, label, "unknown status %q", value)
		}
	case labelEpisodes:
		info.NumberOfEpisodes, err = count(label, value, "話")
	case labelType:
		info.Type = value
	case labelGenre:
		info.Genre = value
	case labelSelfRating:
		info.SelfRatings = spanTexts(dd)
	case labelTags:
		info.Tags = spanTexts(dd)
	case labelCharacters:
		info.TotalCharacters, err = count(label, value, "文字")
	case labelPublishedAt, labelUpdatedAt:
		date, ok := attr(dd.Find("time"), "datetime")
		if !ok {
			return missing(workPage, label)
		}
		if label == labelPublishedAt {
			info.PublishedAt = date
		} else {
			info.UpdatedAt = date
		}
	case labelReviews:
		info.NumberOfReviews, err = count(label, value, "人")
	case labelComments:
		// Authors can hide the count, in which case the value is prose and the count is unknown.
		if n, cerr := count(label, value, "件"); cerr == nil {
			info.NumberOfComments = &n
		} else {
			info.NumberOfComments = nil
		}
	case labelFollows:
		info.NumberOfFollows, err = count(label, value, "人")
	case labelDerivative:
		info.DerivativeOriginalWork = &value
	case labelCollection:
	default:
		p.log().Warn("unknown information label", zap.String("label", label), zap.String("value", fileutils.Truncate(value, 80)))
	}
	return err
}

func count(label, value, unit string) (int, error) {
	n, err := ParseInt(strings.TrimSuffix(strings.TrimSpace(value), unit))
	if err != nil {
		return 0, invalid(workPage, label, "not a count: %q", value)
	}
	return n, nil
}

func spanTexts(s *goquery.Selection) []string {
	out := make([]string, 0)
	s.Find("span").Each(func(_ int, sp *goquery.Selection) {
		if t := text(sp); t != "" {
			out = append(out, t)
		}
	})
	return out
}
