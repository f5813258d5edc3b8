package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// snowflakeTimestamp recovers the creation time embedded in a Twitter
// snowflake ID, in (fractional) seconds since the Twitter epoch: the high
// bits above the 22-bit worker/sequence field are milliseconds since that
// epoch.
func snowflakeTimestamp(id int64) float64 {
	return float64(id>>22) / 1000
}

// twitterV1Tweet is the subset of the v1.1 tweet object ingestion needs.
type twitterV1Tweet struct {
	IDStr    string `json:"id_str"`
	ID       int64  `json:"id"`
	FullText string `json:"full_text"`
	Text     string `json:"text"`
	User     struct {
		IDStr      string `json:"id_str"`
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	ExtendedTweet *struct {
		FullText string `json:"full_text"`
		Entities struct {
			URLs []struct {
				ExpandedURL string `json:"expanded_url"`
			} `json:"urls"`
		} `json:"entities"`
	} `json:"extended_tweet"`
	Entities struct {
		URLs []struct {
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
	InReplyToStatusIDStr string `json:"in_reply_to_status_id_str"`
	RetweetedStatus      *twitterV1Tweet `json:"retweeted_status"`
}

func (t *twitterV1Tweet) text() string {
	switch {
	case t.FullText != "":
		return t.FullText
	case t.ExtendedTweet != nil:
		return t.ExtendedTweet.FullText
	default:
		return t.Text
	}
}

func (t *twitterV1Tweet) urls() []string {
	source := t
	if t.RetweetedStatus != nil {
		source = t.RetweetedStatus
	}
	var out []string
	if source.ExtendedTweet != nil {
		for _, u := range source.ExtendedTweet.Entities.URLs {
			out = append(out, u.ExpandedURL)
		}
		return out
	}
	for _, u := range source.Entities.URLs {
		out = append(out, u.ExpandedURL)
	}
	return out
}

// ParseTwitterV1 parses newline-delimited v1.1-format tweet JSON objects
// (one per line, as collected from the v1.1 streaming or search API).
func ParseTwitterV1(r io.Reader) ([]Tuple, error) {
	var tuples []Tuple

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var tweet twitterV1Tweet
		if err := json.Unmarshal(line, &tweet); err != nil {
			return nil, fmt.Errorf("ingest: parse v1.1 tweet: %w", err)
		}

		var repostID string
		if tweet.RetweetedStatus != nil {
			repostID = tweet.RetweetedStatus.IDStr
		}

		tuples = append(tuples, Tuple{
			MessageID: tweet.IDStr,
			UserID:    tweet.User.IDStr,
			Username:  tweet.User.ScreenName,
			RepostID:  repostID,
			ReplyID:   tweet.InReplyToStatusIDStr,
			Message:   tweet.text(),
			Timestamp: snowflakeTimestamp(tweet.ID),
			URLs:      tweet.urls(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingest: scan v1.1 input: %w", err)
	}

	return tuples, nil
}

// twitterV2Tweet is the subset of the v2 tweet object ingestion needs.
type twitterV2Tweet struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Author struct {
		Username string `json:"username"`
	} `json:"author"`
	AuthorID         string `json:"author_id"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
	Entities struct {
		URLs []struct {
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
}

// twitterV2Payload is a single page of the v2 API response envelope, which
// nests tweets under "data" and may batch several per page.
type twitterV2Payload struct {
	Data []twitterV2Tweet `json:"data"`
}

// ParseTwitterV2 parses newline-delimited v2 API response pages (one JSON
// object per line, each an envelope with a "data" array of tweets, as
// collected by a v2 search or stream archiver).
func ParseTwitterV2(r io.Reader) ([]Tuple, error) {
	var tuples []Tuple

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var page twitterV2Payload
		if err := json.Unmarshal(line, &page); err != nil {
			return nil, fmt.Errorf("ingest: parse v2 page: %w", err)
		}

		for _, tweet := range page.Data {
			var repostID, replyID string
			for _, ref := range tweet.ReferencedTweets {
				switch ref.Type {
				case "retweeted":
					repostID = ref.ID
				case "replied_to":
					replyID = ref.ID
				}
			}

			id, err := strconv.ParseInt(tweet.ID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("ingest: parse v2 tweet id %q: %w", tweet.ID, err)
			}

			var urls []string
			for _, u := range tweet.Entities.URLs {
				urls = append(urls, u.ExpandedURL)
			}

			tuples = append(tuples, Tuple{
				MessageID: tweet.ID,
				UserID:    tweet.AuthorID,
				Username:  tweet.Author.Username,
				RepostID:  repostID,
				ReplyID:   replyID,
				Message:   tweet.Text,
				Timestamp: snowflakeTimestamp(id),
				URLs:      urls,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingest: scan v2 input: %w", err)
	}

	return tuples, nil
}

// IngestTwitterJSON parses r first as v2-format tweet pages, falling back
// to v1.1 format if that fails, then loads the result into the store.
func (in *Ingestor) IngestTwitterJSON(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("ingest: read twitter input: %w", err)
	}

	tuples, err := ParseTwitterV2(bytes.NewReader(data))
	if err != nil || len(tuples) == 0 {
		tuples, err = ParseTwitterV1(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("ingest: input matched neither v2 nor v1.1 format: %w", err)
		}
	}

	return in.IngestBatch(ctx, tuples)
}
