package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseCSV reads r as a header-row CSV file whose columns are, in order:
// message_id, user_id, username, repost_id, reply_id, message, timestamp,
// urls (a space-delimited string of every URL in the message). It returns
// one Tuple per data row.
func ParseCSV(r io.Reader) ([]Tuple, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 8

	if _, err := reader.Read(); err != nil { // header
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("ingest: read csv header: %w", err)
	}

	var tuples []Tuple
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read csv row: %w", err)
		}

		ts, err := strconv.ParseFloat(record[6], 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: parse timestamp %q: %w", record[6], err)
		}

		var urls []string
		if record[7] != "" {
			urls = strings.Split(record[7], " ")
		}

		tuples = append(tuples, Tuple{
			MessageID: record[0],
			UserID:    record[1],
			Username:  record[2],
			RepostID:  record[3],
			ReplyID:   record[4],
			Message:   record[5],
			Timestamp: ts,
			URLs:      urls,
		})
	}

	return tuples, nil
}

// IngestCSV parses r as a coordination-network CSV export and loads it into
// the store in a single batch.
func (in *Ingestor) IngestCSV(ctx context.Context, r io.Reader) error {
	tuples, err := ParseCSV(r)
	if err != nil {
		return err
	}
	return in.IngestBatch(ctx, tuples)
}
