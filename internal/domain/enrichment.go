package domain

import "time"

// ImageScore is the result of image-authenticity analysis. A nil Score with
// LikelyAuthentic false marks a degraded result produced without the remote
// scorer; Analysis then explains why.
type ImageScore struct {
	Score           *float64 `json:"score"` // 0.0–1.0 authenticity confidence, nil when degraded
	LikelyAuthentic bool     `json:"likely_authentic"`
	Analysis        string   `json:"analysis,omitempty"`
}

// SocialPost is one item of social content matched by a search.
type SocialPost struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Content  string    `json:"content"`
	PostedAt time.Time `json:"posted_at"`
}

// SocialSearchResult distinguishes "nothing matched" from "upstream told us
// to back off": RateLimited true means the caller may substitute alternate
// content rather than showing an empty feed.
type SocialSearchResult struct {
	Posts       []SocialPost `json:"posts"`
	RateLimited bool         `json:"rate_limited,omitempty"`
}
