package harvest

// EpisodeStub is one table-of-contents entry, recorded before the episode body is fetched.
type EpisodeStub struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
}

// ChapterIndex groups episode stubs under an optional chapter heading.
// The first chapter of a work may be untitled when episodes precede any heading.
type ChapterIndex struct {
	Title    *string       `json:"title"`
	Episodes []EpisodeStub `json:"episodes"`
}

// WorkInfo is the labeled information block of a work page.
type WorkInfo struct {
	IsEnded                bool     `json:"is_ended"`
	NumberOfEpisodes       int      `json:"number_of_episodes"`
	Type                   string   `json:"type"`
	Genre                  string   `json:"genre"`
	SelfRatings            []string `json:"self_ratings"`
	Tags                   []string `json:"tags"`
	DerivativeOriginalWork *string  `json:"derivative_original_work"`
	TotalCharacters        int      `json:"total_characters"`
	PublishedAt            string   `json:"published_at"`
	UpdatedAt              string   `json:"updated_at"`
	NumberOfReviews        int      `json:"number_of_reviews"`

	// NumberOfComments is nil when the author hides the count.
	NumberOfComments *int `json:"number_of_comments"`

	NumberOfFollows int `json:"number_of_follows"`
}

type ShallowMetadata struct {
	Title        string         `json:"title"`
	AuthorName   string         `json:"author_name"`
	AuthorID     string         `json:"author_id"`
	Stars        int            `json:"stars"`
	Catchphrase  *string        `json:"catchphrase"`
	Introduction *string        `json:"introduction"`
	Info         WorkInfo       `json:"info"`
	Chapters     []ChapterIndex `json:"chapters"`
}

type EpisodeAccess struct {
	ID    string `json:"id"`
	PV    int    `json:"pv"`
	Likes int    `json:"likes"`
}

// Access holds page-view statistics. Episodes that were never viewed may be absent.
type Access struct {
	TotalPV  int             `json:"total_pv"`
	Episodes []EpisodeAccess `json:"episodes"`
}

// Lookup returns the statistics row for one episode.
func (a Access) Lookup(episodeID string) (EpisodeAccess, bool) {
	for _, e := range a.Episodes {
		if e.ID == episodeID {
			return e, true
		}
	}
	return EpisodeAccess{}, false
}

// ReviewLink points at one review; the review body itself is not fetched.
type ReviewLink struct {
	URL       string `json:"url"`
	IsSpoiler bool   `json:"is_spoiler"`
}

// CommentRecord is one cheer comment or the author's reply to it.
// A reply directly follows its parent, shares its target episode, and carries ReplyTo.
type CommentRecord struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	TargetEpisodeID string  `json:"target_episode_id"`
	Body            string  `json:"body"`
	PublishedAt     string  `json:"published_at"`
	ReplyTo         *string `json:"reply_to"`
}

// ShallowWorkRecord is the Phase 1 projection of a work: everything except episode bodies.
type ShallowWorkRecord struct {
	ID       string          `json:"id"`
	Metadata ShallowMetadata `json:"metadata"`
	Accesses Access          `json:"accesses"`
	Reviews  []ReviewLink    `json:"reviews"`
	Comments []CommentRecord `json:"comments"`
}

type Rating string

const (
	RatingCruel    Rating = "cruel"
	RatingViolence Rating = "violence"
	RatingSexual   Rating = "sexual"
)

type WorkMetadata struct {
	Title                    string   `json:"title"`
	AuthorID                 string   `json:"author_id"`
	AuthorName               string   `json:"author_name"`
	Stars                    int      `json:"stars"`
	Catchphrase              *string  `json:"catchphrase"`
	Introduction             *string  `json:"introduction"`
	Type                     string   `json:"type"`
	Genre                    string   `json:"genre"`
	Tags                     []string `json:"tags"`
	DerivativeOriginalWorkID *string  `json:"derivative_original_work_id"`
	TotalCharacters          int      `json:"total_characters"`
	SelfRatings              []Rating `json:"self_ratings"`
	IsEnded                  bool     `json:"is_ended"`
	PublishedAt              string   `json:"published_at"`
	UpdatedAt                string   `json:"updated_at"`
}

// Episode is a hydrated episode. Index is its 1-based position among the retained episodes of
// its chapter.
type Episode struct {
	ID          string `json:"id"`
	Index       int    `json:"index"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
	Body        string `json:"body"`
}

type Chapter struct {
	Title    *string   `json:"title"`
	Episodes []Episode `json:"episodes"`
}

type Comment struct {
	ID          string  `json:"id"`
	EpisodeID   string  `json:"episode_id"`
	UserID      string  `json:"user_id"`
	IsAuthor    bool    `json:"is_author"`
	Body        string  `json:"body"`
	PublishedAt string  `json:"published_at"`
	ReplyTo     *string `json:"reply_to"`
}

// MediaMix flags adaptations announced in a work's own blurb.
type MediaMix struct {
	Book  bool `json:"book"`
	Manga bool `json:"manga"`
	Anime bool `json:"anime"`
}

// FinalWorkRecord is the Phase 2 terminal artifact.
type FinalWorkRecord struct {
	ID                string       `json:"id"`
	Metadata          WorkMetadata `json:"metadata"`
	NumberOfEpisodes  int          `json:"number_of_episodes"`
	Chapters          []Chapter    `json:"chapters"`
	NumberOfReviews   int          `json:"number_of_reviews"`
	Reviews           []ReviewLink `json:"reviews"`
	NumberOfComments  *int         `json:"number_of_comments"`
	Comments          []Comment    `json:"comments"`
	NumberOfFollowers int          `json:"number_of_followers"`
	Access            Access       `json:"access"`
	MediaMix          MediaMix     `json:"media_mix"`
}

// IndexRecord is one row of the dataset index.jsonl.
type IndexRecord struct {
	WorkID      string   `json:"work_id"`
	Title       string   `json:"title"`
	AuthorID    string   `json:"author_id"`
	Chunk       int      `json:"chunk"`
	DatasetPath string   `json:"dataset_path"`
	Chapters    int      `json:"chapters"`
	Episodes    int      `json:"episodes"`
	Comments    int      `json:"comments"`
	Tags        []string `json:"tags,omitempty"`
}
