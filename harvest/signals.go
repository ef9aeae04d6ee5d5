package harvest

import (
	"fmt"
	"strings"
)

var ratingLabels = map[string]Rating{
	"残酷描写有り": RatingCruel,
	"暴力描写有り": RatingViolence,
	"性描写有り":  RatingSexual,
}

// ParseRating maps a self-rating label from the information block to a Rating.
func ParseRating(label string) (Rating, error) {
	r, ok := ratingLabels[strings.TrimSpace(label)]
	if !ok {
		return "", fmt.Errorf("unknown self rating %q", label)
	}
	return r, nil
}

var (
	recommendationWords = []string{
		"オススメ", "おすすめ", "紹介", "個人的", "面白い", "してほしい", "して欲しい",
		"待望", "個人の感想", "アドバイス", "大手出版社", "人気作品",
	}
	bookWords  = []string{"書籍刊行", "書籍化", "書籍発売中", "書籍・漫画化", "Web版", "書籍版"}
	mangaWords = []string{"漫画化", "コミカライズ", "漫画・書籍化", "漫画配信中", "コミック版"}
	animeWords = []string{"アニメ化", "アニメ配信中", "アニメ放送中"}
)

// IsRecommendation reports whether text reads like a third party recommending the work rather
// than the author announcing something.
func IsRecommendation(text string) bool {
	return containsAny(text, recommendationWords)
}

// DetectMediaMix scans blurbs for adaptation announcements. Texts that read as recommendations
// are ignored.
func DetectMediaMix(texts ...string) MediaMix {
	var m MediaMix
	for _, t := range texts {
		if t == "" || IsRecommendation(t) {
			continue
		}
		m.Book = m.Book || containsAny(t, bookWords)
		m.Manga = m.Manga || containsAny(t, mangaWords)
		m.Anime = m.Anime || containsAny(t, animeWords)
	}
	return m
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
