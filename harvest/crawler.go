package harvest

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// WorkPageExtractor reads a work detail page.
type WorkPageExtractor interface {
	ExtractWork(doc *goquery.Document) (ShallowMetadata, error)
}

// AccessExtractor reads a work's access statistics page.
type AccessExtractor interface {
	ExtractAccess(doc *goquery.Document) (Access, error)
}

// ReviewExtractor reads one page of review links.
type ReviewExtractor interface {
	ExtractReviews(doc *goquery.Document) ([]ReviewLink, error)
}

// CommentExtractor reads one page of comments, emitting each reply right after its parent.
type CommentExtractor interface {
	ExtractComments(doc *goquery.Document) ([]CommentRecord, error)
}

// EpisodeExtractor reads the body text of an episode page.
type EpisodeExtractor interface {
	ExtractEpisodeBody(doc *goquery.Document) (string, error)
}

// Extractors bundles one extractor per page type. Implementations must be pure: no I/O, and safe
// to call from several workers at once.
type Extractors struct {
	Work     WorkPageExtractor
	Access   AccessExtractor
	Reviews  ReviewExtractor
	Comments CommentExtractor
	Episode  EpisodeExtractor
}

func (e Extractors) validate() error {
	if e.Work == nil || e.Access == nil || e.Reviews == nil || e.Comments == nil || e.Episode == nil {
		return errors.New("extractors: every page type needs an extractor")
	}
	return nil
}

// Crawler turns work ids into shallow records and shallow records into final records.
type Crawler struct {
	Fetcher    PageFetcher
	URLs       URLs
	Extractors Extractors

	// MaxPages bounds paginated collections per work (0 = until an empty page).
	MaxPages int

	Log *zap.Logger
}

func (c *Crawler) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func (c *Crawler) check() error {
	if c == nil {
		return errors.New("crawler is nil")
	}
	if c.Fetcher == nil {
		return errors.New("crawler: fetcher is nil")
	}
	return c.Extractors.validate()
}

// ShallowWork fetches the work page, access page, review pages and comment pages of one work.
// A not-found work or access page is returned as is so the caller can skip the work.
func (c *Crawler) ShallowWork(ctx context.Context, workID string) (ShallowWorkRecord, error) {
	workURL := c.URLs.Work(workID)
	doc, err := c.Fetcher.Fetch(ctx, workURL)
	if err != nil {
		return ShallowWorkRecord{}, fmt.Errorf("ShallowWork: %w", err)
	}
	meta, err := c.Extractors.Work.ExtractWork(doc)
	if err != nil {
		return ShallowWorkRecord{}, fmt.Errorf("ShallowWork: %s: %w", workURL, err)
	}

	accessURL := c.URLs.Accesses(workID)
	doc, err = c.Fetcher.Fetch(ctx, accessURL)
	if err != nil {
		return ShallowWorkRecord{}, fmt.Errorf("ShallowWork: %w", err)
	}
	access, err := c.Extractors.Access.ExtractAccess(doc)
	if err != nil {
		return ShallowWorkRecord{}, fmt.Errorf("ShallowWork: %s: %w", accessURL, err)
	}

	reviews, err := Paginate(ctx, c.Fetcher,
		func(page int) string { return c.URLs.Reviews(workID, page) },
		c.Extractors.Reviews.ExtractReviews, reviewKey, c.MaxPages)
	if err != nil {
		return ShallowWorkRecord{}, fmt.Errorf("ShallowWork: reviews: %w", err)
	}

	comments, err := Paginate(ctx, c.Fetcher,
		func(page int) string { return c.URLs.Comments(workID, page) },
		c.Extractors.Comments.ExtractComments, commentKey, c.MaxPages)
	if err != nil {
		return ShallowWorkRecord{}, fmt.Errorf("ShallowWork: comments: %w", err)
	}

	c.logger().Debug("work cached",
		zap.String("work_id", workID),
		zap.String("title", meta.Title),
		zap.Int("chapters", len(meta.Chapters)),
		zap.Int("reviews", len(reviews)),
		zap.Int("comments", len(comments)),
	)

	return ShallowWorkRecord{
		ID:       workID,
		Metadata: meta,
		Accesses: access,
		Reviews:  reviews,
		Comments: comments,
	}, nil
}

// HydrateWork fetches every episode body listed in rec's chapter index. Episodes that no longer
// exist are dropped and do not consume an index; any other failure is returned.
func (c *Crawler) HydrateWork(ctx context.Context, rec ShallowWorkRecord) (FinalWorkRecord, error) {
	log := c.logger().With(zap.String("work_id", rec.ID))
	info := rec.Metadata.Info

	ratings := make([]Rating, 0, len(info.SelfRatings))
	for _, label := range info.SelfRatings {
		r, err := ParseRating(label)
		if err != nil {
			log.Warn("unknown self rating dropped", zap.String("label", label))
			continue
		}
		ratings = append(ratings, r)
	}

	out := FinalWorkRecord{
		ID: rec.ID,
		Metadata: WorkMetadata{
			Title:                    rec.Metadata.Title,
			AuthorID:                 rec.Metadata.AuthorID,
			AuthorName:               rec.Metadata.AuthorName,
			Stars:                    rec.Metadata.Stars,
			Catchphrase:              rec.Metadata.Catchphrase,
			Introduction:             rec.Metadata.Introduction,
			Type:                     info.Type,
			Genre:                    info.Genre,
			Tags:                     nonNil(info.Tags),
			DerivativeOriginalWorkID: info.DerivativeOriginalWork,
			TotalCharacters:          info.TotalCharacters,
			SelfRatings:              ratings,
			IsEnded:                  info.IsEnded,
			PublishedAt:              info.PublishedAt,
			UpdatedAt:                info.UpdatedAt,
		},
		NumberOfEpisodes:  info.NumberOfEpisodes,
		NumberOfReviews:   info.NumberOfReviews,
		Reviews:           nonNil(rec.Reviews),
		NumberOfComments:  info.NumberOfComments,
		Comments:          resolveComments(rec.Comments, rec.Metadata.AuthorID),
		NumberOfFollowers: info.NumberOfFollows,
		Access:            rec.Accesses,
		MediaMix:          DetectMediaMix(deref(rec.Metadata.Catchphrase), deref(rec.Metadata.Introduction)),
	}
	out.Access.Episodes = nonNil(out.Access.Episodes)

	chapters := make([]Chapter, 0, len(rec.Metadata.Chapters))
	for _, ch := range rec.Metadata.Chapters {
		hydrated := Chapter{Title: ch.Title, Episodes: make([]Episode, 0, len(ch.Episodes))}
		for _, stub := range ch.Episodes {
			body, err := c.episodeBody(ctx, rec.ID, stub.ID)
			if err != nil {
				if isNotFound(err) {
					log.Warn("episode not found, skipped", zap.String("episode_id", stub.ID))
					continue
				}
				return FinalWorkRecord{}, fmt.Errorf("HydrateWork: %w", err)
			}
			hydrated.Episodes = append(hydrated.Episodes, Episode{
				ID:          stub.ID,
				Index:       len(hydrated.Episodes) + 1,
				Title:       stub.Title,
				PublishedAt: stub.PublishedAt,
				Body:        body,
			})
		}
		chapters = append(chapters, hydrated)
	}
	out.Chapters = chapters

	log.Debug("work hydrated", zap.String("title", out.Metadata.Title), zap.Int("chapters", len(chapters)))
	return out, nil
}

func (c *Crawler) episodeBody(ctx context.Context, workID, episodeID string) (string, error) {
	url := c.URLs.Episode(workID, episodeID)
	doc, err := c.Fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	body, err := c.Extractors.Episode.ExtractEpisodeBody(doc)
	if err != nil {
		return "", fmt.Errorf("%s: %w", url, err)
	}
	return body, nil
}

func reviewKey(r ReviewLink) string { return r.URL }
func commentKey(c CommentRecord) string { return c.ID }

// resolveComments re-emits cached comments with IsAuthor set, keeping their order.
func resolveComments(in []CommentRecord, authorID string) []Comment {
	out := make([]Comment, 0, len(in))
	for _, cm := range in {
		out = append(out, Comment{
			ID:          cm.ID,
			EpisodeID:   cm.TargetEpisodeID,
			UserID:      cm.UserID,
			IsAuthor:    cm.UserID == authorID,
			Body:        cm.Body,
			PublishedAt: cm.PublishedAt,
			ReplyTo:     cm.ReplyTo,
		})
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
