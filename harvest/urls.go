package harvest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const DefaultBaseURL = "https://kakuyomu.jp"

// URLs composes site URLs relative to Base.
type URLs struct {
	Base string
}

func (u URLs) base() string {
	b := strings.TrimRight(strings.TrimSpace(u.Base), "/")
	if b == "" {
		return DefaultBaseURL
	}
	return b
}

func (u URLs) Work(workID string) string {
	return u.base() + "/works/" + workID
}

func (u URLs) Reviews(workID string, page int) string {
	return fmt.Sprintf("%s/works/%s/reviews?page=%d", u.base(), workID, page)
}

func (u URLs) Comments(workID string, page int) string {
	return fmt.Sprintf("%s/works/%s/comments?page=%d", u.base(), workID, page)
}

func (u URLs) Accesses(workID string) string {
	return u.base() + "/works/" + workID + "/accesses"
}

func (u URLs) Episode(workID, episodeID string) string {
	return u.base() + "/works/" + workID + "/episodes/" + episodeID
}

// SearchOrder is the sort key of the site's work search.
type SearchOrder string

const (
	OrderWeeklyRanking SearchOrder = "weekly_ranking"
	OrderPopular       SearchOrder = "popular"
	OrderPublishedAt   SearchOrder = "published_at"
	OrderLastEpisodeAt SearchOrder = "last_episode_published_at"
)

// SearchMaxPage is the deepest result page the site serves for one query.
const SearchMaxPage = 500

const searchReviewRangeKey = "custom"

// SearchQuery selects one page of works within a star range. A nil MaxStar leaves the range open.
type SearchQuery struct {
	Order   SearchOrder
	MinStar int
	MaxStar *int
	Page    int
}

func (u URLs) Search(q SearchQuery) string {
	order := q.Order
	if order == "" {
		order = OrderPopular
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	max := ""
	if q.MaxStar != nil {
		max = strconv.Itoa(*q.MaxStar)
	}
	// Parameter order matches what the site itself emits.
	parts := []string{
		"order=" + url.QueryEscape(string(order)),
		"total_review_point_range=" + searchReviewRangeKey,
		"total_review_point_min=" + strconv.Itoa(q.MinStar),
		"total_review_point_max=" + max,
		"page=" + strconv.Itoa(page),
	}
	return u.base() + "/search?" + strings.Join(parts, "&")
}

// DefaultSearchConditions is a star-range ladder whose steps each stay under SearchMaxPage
// result pages.
func DefaultSearchConditions() []SearchQuery {
	ranges := [][2]int{
		{1000, -1}, {500, 999}, {250, 499}, {125, 249}, {100, 124},
		{80, 99}, {60, 79}, {40, 59}, {35, 39}, {30, 34},
		{27, 29}, {24, 26}, {20, 23}, {17, 19}, {15, 16},
		{13, 14}, {12, 12}, {11, 11}, {10, 10}, {9, 9},
	}
	out := make([]SearchQuery, 0, len(ranges))
	for _, r := range ranges {
		q := SearchQuery{Order: OrderPopular, MinStar: r[0], Page: 1}
		if r[1] >= 0 {
			max := r[1]
			q.MaxStar = &max
		}
		out = append(out, q)
	}
	return out
}

// SearchURLs lists the result pages 1..pages of every query in conds, query by query. pages is
// clamped to [1, SearchMaxPage].
func (u URLs) SearchURLs(conds []SearchQuery, pages int) []string {
	pages = min(max(pages, 1), SearchMaxPage)
	out := make([]string, 0, len(conds)*pages)
	for _, q := range conds {
		for p := 1; p <= pages; p++ {
			q.Page = p
			out = append(out, u.Search(q))
		}
	}
	return out
}
