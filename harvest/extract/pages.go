package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/theimaginaryfoundation/novel-harvest/harvest"
)

const (
	accessPage  = "access"
	reviewPage  = "reviews"
	commentPage = "comments"
	episodePage = "episode"
)

// AccessPage extracts total and per-episode page views.
type AccessPage struct{}

func (AccessPage) ExtractAccess(doc *goquery.Document) (harvest.Access, error) {
	if doc == nil {
		return harvest.Access{}, missing(accessPage, "document")
	}
	totalSel := doc.Find("span#workStatsCount-label").First()
	if totalSel.Length() == 0 {
		return harvest.Access{}, missing(accessPage, "total_pv")
	}
	total, err := ParseInt(text(totalSel))
	if err != nil {
		return harvest.Access{}, invalid(accessPage, "total_pv", "%v", err)
	}

	episodes := make([]harvest.EpisodeAccess, 0)
	doc.Find("table#episodeStats-table > tbody > tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		href, ok := attr(tr.Find("td.episodeTitle > a"), "href")
		if !ok {
			err = missing(accessPage, "episode.href")
			return false
		}
		likes := 0
		if l := tr.Find("td.barCheerCount > span").First(); l.Length() > 0 {
			if likes, err = ParseInt(text(l)); err != nil {
				err = invalid(accessPage, "episode.likes", "%v", err)
				return false
			}
		}
		pvSel := tr.Find("td.barCount > span.barCount-label").First()
		if pvSel.Length() == 0 {
			err = missing(accessPage, "episode.pv")
			return false
		}
		pv, perr := ParseInt(text(pvSel))
		if perr != nil {
			err = invalid(accessPage, "episode.pv", "%v", perr)
			return false
		}
		episodes = append(episodes, harvest.EpisodeAccess{ID: ParseEpisodeID(href), PV: pv, Likes: likes})
		return true
	})
	if err != nil {
		return harvest.Access{}, err
	}
	return harvest.Access{TotalPV: total, Episodes: episodes}, nil
}

// ReviewPage extracts the review links of one review listing page.
type ReviewPage struct{}

func (ReviewPage) ExtractReviews(doc *goquery.Document) ([]harvest.ReviewLink, error) {
	if doc == nil {
		return nil, missing(reviewPage, "document")
	}
	out := make([]harvest.ReviewLink, 0)
	var err error
	doc.Find("div#workReview-list > article").EachWithBreak(func(_ int, article *goquery.Selection) bool {
		link := article.Find("h4 > span > a").First()
		if link.Length() == 0 {
			return true
		}
		href, ok := attr(link, "href")
		if !ok || href == "" {
			err = missing(reviewPage, "review.href")
			return false
		}
		// Long reviews are cut with a "read all" marker; those are the ones hiding spoilers.
		spoiler := article.Find("p.widget-workReview-reviewBody > span").First()
		out = append(out, harvest.ReviewLink{
			URL:       href,
			IsSpoiler: spoiler.Length() > 0 && strings.Contains(spoiler.Text(), "全文を読む"),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CommentPage extracts cheer comments and links each author reply to its parent.
type CommentPage struct{}

const replySuffix = "-reply"

func (CommentPage) ExtractComments(doc *goquery.Document) ([]harvest.CommentRecord, error) {
	if doc == nil {
		return nil, missing(commentPage, "document")
	}
	out := make([]harvest.CommentRecord, 0)
	var err error
	doc.Find("div.widget-cheerComment").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		var recs []harvest.CommentRecord
		recs, err = commentBlock(block)
		if err != nil {
			return false
		}
		out = append(out, recs...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// commentBlock returns the comment and, when present, the reply that immediately follows it.
func commentBlock(block *goquery.Selection) ([]harvest.CommentRecord, error) {
	rawID, ok := attr(block, "id")
	if !ok || rawID == "" {
		return nil, missing(commentPage, "comment.id")
	}
	id := strings.TrimPrefix(rawID, "comment-")

	inner := block.Find("div.widget-cheerComment-inner").First()
	if inner.Length() == 0 {
		return nil, missing(commentPage, "comment.inner")
	}
	userHref, ok := attr(inner.Find("h5 > a"), "href")
	if !ok {
		return nil, missing(commentPage, "comment.user")
	}
	episodeHref, ok := attr(inner.Find("p.widget-cheerComment-episodeTitle > a"), "href")
	if !ok {
		return nil, missing(commentPage, "comment.episode")
	}
	published, ok := attr(inner.Find("time"), "datetime")
	if !ok {
		return nil, missing(commentPage, "comment.published_at")
	}
	body := inner.Find("div.widget-cheerComment-body > p.js-vertical-composition-item").First()
	if body.Length() == 0 {
		return nil, missing(commentPage, "comment.body")
	}

	episodeID := ParseEpisodeID(episodeHref)
	recs := []harvest.CommentRecord{{
		ID:              id,
		UserID:          ParseUserID(userHref),
		TargetEpisodeID: episodeID,
		Body:            text(body),
		PublishedAt:     published,
	}}

	reply := block.Find("div.widget-cheerComment-reply").First()
	if reply.Length() == 0 {
		return recs, nil
	}
	authorHref, ok := attr(reply.Find("a.widget-cheerComment-buttons-author"), "href")
	if !ok {
		return nil, missing(commentPage, "reply.author")
	}
	// Replies only carry a display date, not a machine-readable timestamp.
	date := reply.Find("p.widget-cheerComment-buttons > span > span").First()
	if date.Length() == 0 {
		return nil, missing(commentPage, "reply.published_at")
	}
	replyBody := reply.Find("div.widget-cheerComment-body > p.js-vertical-composition-item").First()
	if replyBody.Length() == 0 {
		return nil, missing(commentPage, "reply.body")
	}
	parent := id
	recs = append(recs, harvest.CommentRecord{
		ID:              id + replySuffix,
		UserID:          ParseUserID(authorHref),
		TargetEpisodeID: episodeID,
		Body:            text(replyBody),
		PublishedAt:     text(date),
		ReplyTo:         &parent,
	})
	return recs, nil
}

// EpisodePage extracts the body text of an episode.
type EpisodePage struct{}

func (EpisodePage) ExtractEpisodeBody(doc *goquery.Document) (string, error) {
	if doc == nil {
		return "", missing(episodePage, "document")
	}
	body := doc.Find("div.widget-episode-inner").First()
	if body.Length() == 0 {
		body = doc.Find("div.widget-episodeBody").First()
	}
	if body.Length() == 0 {
		return "", missing(episodePage, "body")
	}
	return text(body), nil
}
