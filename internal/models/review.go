package models

import "time"

// Recommendation is a reviewer's verdict on an article.
type Recommendation string

const (
	RecommendAccept Recommendation = "ACCEPT"
	RecommendRevise Recommendation = "REVISE"
	RecommendReject Recommendation = "REJECT"
)

// Review records a reviewer decision. One review per (article, reviewer);
// the unique constraint rejects silent duplicates.
type Review struct {
	ID                   string         `db:"id" json:"id"`
	ArticleID            string         `db:"article_id" json:"article_id"`
	ReviewerID           string         `db:"reviewer_id" json:"reviewer_id"`
	Recommendation       Recommendation `db:"recommendation" json:"recommendation"`
	CommentsToAuthor     string         `db:"comments_to_author" json:"comments_to_author"`
	ConfidentialComments string         `db:"confidential_comments" json:"confidential_comments,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}
