package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteEdgeCSV writes edges as a Gephi-compatible CSV with header
// "source,target,weight,edge_type".
func WriteEdgeCSV(w io.Writer, edges []EdgeRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"source", "target", "weight", "edge_type"}); err != nil {
		return err
	}
	for _, e := range edges {
		if err := writer.Write([]string{e.Source, e.Target, strconv.Itoa(e.Weight), e.EdgeType}); err != nil {
			return fmt.Errorf("output: write edge row: %w", err)
		}
	}
	return writer.Error()
}

// WriteNodeCSV writes node annotations as a CSV with header
// "Id,username,message_0,message_1,...".
func WriteNodeCSV(w io.Writer, nodes []NodeRow, nMessages int) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := make([]string, 0, nMessages+2)
	header = append(header, "Id", "username")
	for i := 0; i < nMessages; i++ {
		header = append(header, fmt.Sprintf("message_%d", i))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, n := range nodes {
		record := make([]string, 0, nMessages+2)
		record = append(record, n.UserID, n.Username)
		record = append(record, n.Messages...)
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("output: write node row: %w", err)
		}
	}
	return writer.Error()
}
