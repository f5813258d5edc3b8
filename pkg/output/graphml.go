package output

import (
	"encoding/xml"
	"fmt"
	"io"
)

// No GraphML library appears anywhere in the example pack, so this adapter
// is hand-rolled on encoding/xml; see DESIGN.md for that justification.

type graphmlKey struct {
	XMLName  xml.Name `xml:"key"`
	ID       string   `xml:"id,attr"`
	For      string   `xml:"for,attr"`
	AttrName string   `xml:"attr.name,attr"`
	AttrType string   `xml:"attr.type,attr"`
}

type graphmlData struct {
	XMLName xml.Name `xml:"data"`
	Key     string   `xml:"key,attr"`
	Value   string   `xml:",chardata"`
}

type graphmlNode struct {
	XMLName xml.Name      `xml:"node"`
	ID      string        `xml:"id,attr"`
	Data    []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	XMLName xml.Name      `xml:"edge"`
	Source  string        `xml:"source,attr"`
	Target  string        `xml:"target,attr"`
	Data    []graphmlData `xml:"data"`
}

type graphmlGraph struct {
	XMLName     xml.Name `xml:"graph"`
	EdgeDefault string   `xml:"edgedefault,attr"`
	Nodes       []graphmlNode
	Edges       []graphmlEdge
}

type graphmlDocument struct {
	XMLName xml.Name `xml:"graphml"`
	Xmlns   string   `xml:"xmlns,attr"`
	Keys    []graphmlKey
	Graph   graphmlGraph
}

// WriteGraphML writes edges and their node annotations as a GraphML
// document, mirroring load_networkx_graph's attribute layout: nodes carry
// a "username" attribute plus "message_0".."message_{n-1}", edges carry
// "weight" and "edge_type".
func WriteGraphML(w io.Writer, edges []EdgeRow, nodes []NodeRow, nMessages int) error {
	doc := graphmlDocument{
		Xmlns: "http://graphml.graphdrawing.org/xmlns",
		Keys: []graphmlKey{
			{ID: "d_username", For: "node", AttrName: "username", AttrType: "string"},
			{ID: "d_weight", For: "edge", AttrName: "weight", AttrType: "int"},
			{ID: "d_edge_type", For: "edge", AttrName: "edge_type", AttrType: "string"},
		},
		Graph: graphmlGraph{EdgeDefault: "undirected"},
	}
	for i := 0; i < nMessages; i++ {
		doc.Keys = append(doc.Keys, graphmlKey{
			ID: fmt.Sprintf("d_message_%d", i), For: "node",
			AttrName: fmt.Sprintf("message_%d", i), AttrType: "string",
		})
	}

	present := make(map[string]bool)
	for _, e := range edges {
		present[e.Source] = true
		present[e.Target] = true
		doc.Graph.Edges = append(doc.Graph.Edges, graphmlEdge{
			Source: e.Source,
			Target: e.Target,
			Data: []graphmlData{
				{Key: "d_weight", Value: fmt.Sprintf("%d", e.Weight)},
				{Key: "d_edge_type", Value: e.EdgeType},
			},
		})
	}

	for _, n := range nodes {
		if !present[n.UserID] {
			continue
		}
		data := []graphmlData{{Key: "d_username", Value: n.Username}}
		for i, msg := range n.Messages {
			data = append(data, graphmlData{Key: fmt.Sprintf("d_message_%d", i), Value: msg})
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphmlNode{ID: n.UserID, Data: data})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("output: encode graphml: %w", err)
	}
	return nil
}
