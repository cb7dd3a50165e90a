package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"finitefield.org/bloomcare-web/internal/domain"
)

// Reviews lists a product's reviews with GET /api/reviews/{productId}. Both a bare array and
// an {ok, reviews} envelope are accepted.
func (c *Client) Reviews(ctx context.Context, productID string) ([]domain.Review, error) {
	if err := checkID(productID); err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, c.http, request{
		op:     "list_reviews",
		method: http.MethodGet,
		path:   []string{"api", "reviews", productID},
	})
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if !bytes.HasPrefix(raw, []byte("[")) {
		var env struct {
			Reviews json.RawMessage `json:"reviews"`
		}
		if err := decodeInto("list_reviews", raw, &env); err != nil {
			return nil, err
		}
		raw = env.Reviews
		if len(raw) == 0 || string(raw) == "null" {
			return nil, nil
		}
	}
	reviews, err := domain.DecodeReviews(raw)
	if err != nil {
		return nil, fmt.Errorf("backend: list_reviews: %w", err)
	}
	return reviews, nil
}

type reviewPayload struct {
	ProductID string `json:"productId"`
	Author    string `json:"author"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// SubmitReview posts a review with POST /api/reviews.
func (s *Session) SubmitReview(ctx context.Context, r domain.Review) error {
	body, err := jsonBody(reviewPayload{ProductID: r.ProductID, Author: r.Author, Rating: r.Rating, Comment: r.Comment})
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, s.http, request{
		op:          "submit_review",
		method:      http.MethodPost,
		path:        []string{"api", "reviews"},
		body:        body,
		contentType: "application/json",
		idempotent:  true,
	})
	return err
}
