// Package sitetest serves a small in-memory imitation of the fiction site for tests.
package sitetest

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

type Episode struct {
	ID          string
	Title       string
	PublishedAt string
	Body        string

	// Gone makes the episode page answer 404 while it stays listed in the table of contents.
	Gone bool

	PV    int
	Likes int
}

// Chapter is a table-of-contents group. An empty Title renders no heading.
type Chapter struct {
	Title    string
	Episodes []Episode
}

type Reply struct {
	AuthorID string
	Date     string
	Body     string
}

type Comment struct {
	ID          string
	UserID      string
	EpisodeID   string
	Body        string
	PublishedAt string
	Reply       *Reply
}

type Review struct {
	Href    string
	Spoiler bool
}

type Work struct {
	ID           string
	Title        string
	AuthorID     string
	AuthorName   string
	Stars        int
	Catchphrase  string
	Introduction string

	Status        string
	Type          string
	Genre         string
	SelfRatings   []string
	Tags          []string
	Characters    int
	PublishedAt   string
	UpdatedAt     string
	Reviews       int
	CommentsValue string
	Follows       int

	// ExtraInfo adds labels to the information block, e.g. ones the extractor does not know.
	ExtraInfo [][2]string

	Chapters []Chapter
	TotalPV  int

	CommentPages [][]Comment
	ReviewPages  [][]Review

	// OmitTitle breaks the work page so extraction fails.
	OmitTitle bool
}

// Site is an http.Handler over a set of works. It records how often each path was requested.
type Site struct {
	mu    sync.Mutex
	works map[string]*Work
	hits  map[string]int
}

func New(works ...*Work) *Site {
	s := &Site{works: make(map[string]*Work), hits: make(map[string]int)}
	for _, w := range works {
		s.works[w.ID] = w
	}
	return s
}

// Hits returns the number of requests seen for path plus query, e.g. "/works/1/comments?page=2".
func (s *Site) Hits(pathAndQuery string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[pathAndQuery]
}

func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	s.mu.Lock()
	s.hits[key]++
	s.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "works" {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	work, ok := s.works[parts[1]]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	var body string
	switch {
	case len(parts) == 2:
		body = RenderWork(work)
	case len(parts) == 3 && parts[2] == "accesses":
		body = RenderAccess(work)
	case len(parts) == 3 && parts[2] == "reviews":
		body = RenderReviews(pageOf(work.ReviewPages, page))
	case len(parts) == 3 && parts[2] == "comments":
		body = RenderComments(pageOf(work.CommentPages, page))
	case len(parts) == 4 && parts[2] == "episodes":
		ep, ok := findEpisode(work, parts[3])
		if !ok || ep.Gone {
			http.NotFound(w, r)
			return
		}
		body = RenderEpisode(ep)
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func pageOf[T any](pages [][]T, page int) []T {
	if page < 1 || page > len(pages) {
		return nil
	}
	return pages[page-1]
}

func findEpisode(w *Work, id string) (Episode, bool) {
	for _, ch := range w.Chapters {
		for _, ep := range ch.Episodes {
			if ep.ID == id {
				return ep, true
			}
		}
	}
	return Episode{}, false
}

var esc = html.EscapeString

func RenderWork(w *Work) string {
	var b strings.Builder
	b.WriteString("<html><body>\n<section id=\"work-information\"><header>\n")
	if !w.OmitTitle {
		fmt.Fprintf(&b, "<h4>%s</h4>\n", esc(w.Title))
	}
	fmt.Fprintf(&b, "<h5><a href=\"/users/%s\">", esc(w.AuthorID))
	if w.AuthorName != "" {
		fmt.Fprintf(&b, "<span class=\"activityName\">%s</span>", esc(w.AuthorName))
	}
	fmt.Fprintf(&b, "<span class=\"screenName\">@%s</span></a></h5>\n", esc(w.AuthorID))
	b.WriteString("</header></section>\n")
	fmt.Fprintf(&b, "<p id=\"workPoints\"><a href=\"#reviews\"><span>%s</span></a></p>\n", commaInt(w.Stars))
	if w.Catchphrase != "" {
		fmt.Fprintf(&b, "<span id=\"catchphrase-body\">%s</span>\n", esc(w.Catchphrase))
	}
	if w.Introduction != "" {
		fmt.Fprintf(&b, "<p id=\"introduction\">%s<span class=\"ui-truncateTextButton-expandButton\"><span>続きを読む</span></span></p>\n", esc(w.Introduction))
	}

	b.WriteString("<div class=\"widget-toc-main\"><ol>\n")
	for _, ch := range w.Chapters {
		if ch.Title != "" {
			fmt.Fprintf(&b, "<li class=\"widget-toc-chapter widget-toc-level1\"><span>%s</span></li>\n", esc(ch.Title))
		}
		for _, ep := range ch.Episodes {
			fmt.Fprintf(&b, "<li class=\"widget-toc-episode\"><a href=\"/works/%s/episodes/%s\" class=\"widget-toc-episode-episodeTitle\"><span class=\"widget-toc-episode-titleLabel\">%s</span><time datetime=\"%s\">%s</time></a></li>\n",
				esc(w.ID), esc(ep.ID), esc(ep.Title), esc(ep.PublishedAt), esc(ep.PublishedAt))
		}
	}
	b.WriteString("</ol></div>\n")

	b.WriteString("<div id=\"workInformationList\"><dl>\n")
	dd := func(label, value string) {
		fmt.Fprintf(&b, "<dt>%s</dt><dd>%s</dd>\n", esc(label), value)
	}
	dd("執筆状況", esc(w.Status))
	dd("エピソード", commaInt(len(episodeIDs(w)))+"話")
	dd("種類", esc(w.Type))
	dd("ジャンル", esc(w.Genre))
	dd("セルフレイティング", spans(w.SelfRatings))
	dd("タグ", spans(w.Tags))
	dd("総文字数", commaInt(w.Characters)+"文字")
	dd("公開日", fmt.Sprintf("<time datetime=\"%s\">%s</time>", esc(w.PublishedAt), esc(w.PublishedAt)))
	dd("最終更新日", fmt.Sprintf("<time datetime=\"%s\">%s</time>", esc(w.UpdatedAt), esc(w.UpdatedAt)))
	dd("おすすめレビュー", commaInt(w.Reviews)+"人")
	dd("応援コメント", esc(w.CommentsValue))
	dd("小説フォロー数", commaInt(w.Follows)+"人")
	for _, kv := range w.ExtraInfo {
		dd(kv[0], esc(kv[1]))
	}
	b.WriteString("</dl></div>\n</body></html>\n")
	return b.String()
}

func episodeIDs(w *Work) []string {
	var ids []string
	for _, ch := range w.Chapters {
		for _, ep := range ch.Episodes {
			ids = append(ids, ep.ID)
		}
	}
	return ids
}

func spans(items []string) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "<a href=\"#\"><span>%s</span></a>", esc(it))
	}
	return b.String()
}

func RenderAccess(w *Work) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><body><span id=\"workStatsCount-label\">%s</span>\n<table id=\"episodeStats-table\"><tbody>\n", commaInt(w.TotalPV))
	for _, ch := range w.Chapters {
		for _, ep := range ch.Episodes {
			if ep.PV == 0 {
				continue
			}
			fmt.Fprintf(&b, "<tr><td class=\"episodeTitle\"><a href=\"/works/%s/episodes/%s\">%s</a></td>", esc(w.ID), esc(ep.ID), esc(ep.Title))
			if ep.Likes > 0 {
				fmt.Fprintf(&b, "<td class=\"barCheerCount\"><span>%s</span></td>", commaInt(ep.Likes))
			}
			fmt.Fprintf(&b, "<td class=\"barCount\"><span class=\"barCount-label\">%s</span></td></tr>\n", commaInt(ep.PV))
		}
	}
	b.WriteString("</tbody></table></body></html>\n")
	return b.String()
}

func RenderReviews(reviews []Review) string {
	var b strings.Builder
	b.WriteString("<html><body><div id=\"workReview-list\">\n")
	for _, r := range reviews {
		fmt.Fprintf(&b, "<article><h4><span><a href=\"%s\">review</a></span></h4><p class=\"widget-workReview-reviewBody\">本文", esc(r.Href))
		if r.Spoiler {
			b.WriteString("<span>…全文を読む</span>")
		}
		b.WriteString("</p></article>\n")
	}
	b.WriteString("</div></body></html>\n")
	return b.String()
}

func RenderComments(comments []Comment) string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	for _, c := range comments {
		fmt.Fprintf(&b, "<div class=\"widget-cheerComment\" id=\"comment-%s\"><div class=\"widget-cheerComment-inner\">", esc(c.ID))
		fmt.Fprintf(&b, "<h5><a href=\"/users/%s\">%s</a></h5>", esc(c.UserID), esc(c.UserID))
		fmt.Fprintf(&b, "<p class=\"widget-cheerComment-episodeTitle\"><a href=\"/works/w/episodes/%s/comments\">ep</a></p>", esc(c.EpisodeID))
		fmt.Fprintf(&b, "<time datetime=\"%s\">%s</time>", esc(c.PublishedAt), esc(c.PublishedAt))
		fmt.Fprintf(&b, "<div class=\"widget-cheerComment-body\"><p class=\"js-vertical-composition-item\">%s</p></div>", esc(c.Body))
		b.WriteString("</div>")
		if c.Reply != nil {
			b.WriteString("<div class=\"widget-cheerComment-reply\">")
			fmt.Fprintf(&b, "<div class=\"widget-cheerComment-body\"><p class=\"js-vertical-composition-item\">%s</p></div>", esc(c.Reply.Body))
			fmt.Fprintf(&b, "<p class=\"widget-cheerComment-buttons\"><a class=\"widget-cheerComment-buttons-author\" href=\"/users/%s\">author</a><span><span>%s</span></span></p>", esc(c.Reply.AuthorID), esc(c.Reply.Date))
			b.WriteString("</div>")
		}
		b.WriteString("</div>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

func RenderEpisode(ep Episode) string {
	return fmt.Sprintf("<html><body><header><h1>%s</h1></header><div class=\"widget-episode\"><div class=\"widget-episode-inner\"><p>%s</p></div></div></body></html>\n",
		esc(ep.Title), esc(ep.Body))
}

func commaInt(n int) string {
	s := strconv.Itoa(n)
	if n < 0 || len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
